package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"paperdesk/auth"
	"paperdesk/config"
	"paperdesk/llm"
	"paperdesk/models"
	"paperdesk/providers"
	"paperdesk/providers/arxiv"
	"paperdesk/providers/crossref"
	"paperdesk/providers/pubmed"
	"paperdesk/providers/semanticscholar"
	"paperdesk/services"
	"paperdesk/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to database.")

	logging.Info("Running database auto-migration...")
	db.AutoMigrate(
		&models.User{}, &models.Session{},
		&models.Paper{}, &models.Tag{}, &models.Project{},
		&models.ReadingEntry{}, &models.QAExchange{},
	)

	// Setup providers
	fetchers := map[string]providers.Fetcher{
		models.SourceArxiv:    arxiv.NewFetcher(cfg, logging),
		models.SourceCrossref: crossref.NewFetcher(cfg, logging),
		models.SourcePubMed:   pubmed.NewFetcher(cfg, logging),
	}
	s2Client := semanticscholar.NewClient(cfg, logging)

	// Setup services
	llmClient := llm.NewHTTPClient(cfg, logging)
	summarizer := services.NewSummarizer(llmClient, services.DefaultStyles(), logging)
	answerer := services.NewAnswerer(llmClient, logging)
	extractor := services.NewPDFExtractor(llmClient, logging)

	client, err := storage.NewS3Client(cfg)
	if err != nil {
		logging.Fatal("S3 client creation failed", zap.Error(err))
	}
	ingest := services.NewIngestService(cfg, db, client, logging, fetchers, summarizer, extractor)
	authService := auth.NewService(cfg, db, logging)

	// Setup router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	setupAuthRoutes(router, authService, logging)

	authed := router.Group("/", auth.Middleware(authService))
	setupPaperRoutes(authed, db, ingest, answerer, cfg, logging)
	setupTagRoutes(authed, db, logging)
	setupProjectRoutes(authed, db, logging)
	setupReadingRoutes(authed, db, logging)
	setupExportRoutes(authed, db, logging)
	setupDiscoverRoutes(authed, s2Client, logging)

	// Setup cron
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.CronSchedule, func() {
		logging.Info("Running scheduled citation refresh...")
		refreshCitationCounts(db, s2Client, logging)
		if reaped, err := authService.ReapExpiredSessions(); err != nil {
			logging.Error("Session reaping failed", zap.Error(err))
		} else if reaped > 0 {
			logging.Info("Expired sessions reaped", zap.Int64("count", reaped))
		}
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

// respondServiceError maps the pipeline's error kinds onto HTTP
// statuses: bad input is the client's fault, upstream trouble is a bad
// gateway, everything else is ours.
func respondServiceError(c *gin.Context, log *zap.Logger, err error) {
	var upstream *providers.UpstreamError
	switch {
	case errors.Is(err, services.ErrInvalidIdentifier):
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not recognize the identifier"})
	case errors.Is(err, services.ErrUnreadablePDF):
		c.JSON(http.StatusBadRequest, gin.H{"error": "the PDF has no readable text layer"})
	case errors.Is(err, providers.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "no paper found for this identifier"})
	case errors.As(err, &upstream):
		log.Warn("Upstream provider error", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": fmt.Sprintf("%s is unavailable", upstream.Source)})
	case errors.Is(err, services.ErrSummarizationFailed), errors.Is(err, services.ErrAnswerFailed):
		log.Error("LLM pipeline error", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "language model request failed"})
	default:
		log.Error("Internal error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func setupAuthRoutes(router *gin.Engine, svc *auth.Service, log *zap.Logger) {
	rg := router.Group("/auth")

	type credentials struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	rg.POST("/register", func(c *gin.Context) {
		var req credentials
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
			return
		}
		user, err := svc.Register(req.Email, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrEmailTaken) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, user)
	})

	rg.POST("/login", func(c *gin.Context) {
		var req credentials
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
			return
		}
		user, session, err := svc.Login(req.Email, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
				return
			}
			log.Error("Login failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		auth.SetSessionCookie(c, svc, session.Token)
		c.JSON(http.StatusOK, user)
	})

	rg.POST("/logout", func(c *gin.Context) {
		if token, err := c.Cookie(svc.Config.SessionCookieName); err == nil && token != "" {
			if err := svc.Logout(token); err != nil {
				log.Error("Logout failed", zap.Error(err))
			}
		}
		auth.ClearSessionCookie(c, svc)
		c.JSON(http.StatusOK, gin.H{"status": "logged out"})
	})

	rg.GET("/me", auth.Middleware(svc), func(c *gin.Context) {
		c.JSON(http.StatusOK, auth.CurrentUser(c))
	})

	rg.PATCH("/me", auth.Middleware(svc), func(c *gin.Context) {
		var req struct {
			DefaultStyle string `json:"default_style" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "default_style is required"})
			return
		}
		if _, ok := services.DefaultStyles()[req.DefaultStyle]; !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown summary style"})
			return
		}
		user := auth.CurrentUser(c)
		if err := svc.DB.Model(user).Update("default_style", req.DefaultStyle).Error; err != nil {
			log.Error("Failed to update user", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		user.DefaultStyle = req.DefaultStyle
		c.JSON(http.StatusOK, user)
	})
}

// loadUserPaper fetches one paper scoped to the authenticated user.
func loadUserPaper(c *gin.Context, db *gorm.DB) (*models.Paper, bool) {
	user := auth.CurrentUser(c)
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid paper id"})
		return nil, false
	}
	var paper models.Paper
	if err := db.Preload("Tags").Where("user_id = ?", user.ID).First(&paper, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "paper not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		}
		return nil, false
	}
	return &paper, true
}

func setupPaperRoutes(router *gin.RouterGroup, db *gorm.DB, ingest *services.IngestService, answerer *services.Answerer, cfg *config.Config, log *zap.Logger) {
	rg := router.Group("/library/papers")

	rg.GET("", func(c *gin.Context) {
		user := auth.CurrentUser(c)
		query := db.Preload("Tags").Where("user_id = ?", user.ID)

		if st := c.Query("source_type"); st != "" {
			query = query.Where("source_type = ?", st)
		}
		if year, err := strconv.Atoi(c.Query("year")); err == nil {
			query = query.Where("year = ?", year)
		}
		if search := c.Query("search"); search != "" {
			like := "%" + search + "%"
			query = query.Where("title ILIKE ? OR authors ILIKE ? OR abstract ILIKE ?", like, like, like)
		}
		if tag := c.Query("tag"); tag != "" {
			query = query.Joins("JOIN paper_tags ON paper_tags.paper_id = papers.id").
				Joins("JOIN tags ON tags.id = paper_tags.tag_id").
				Where("tags.name = ?", tag)
		}
		if projectID, err := strconv.Atoi(c.Query("project_id")); err == nil {
			query = query.Joins("JOIN project_papers ON project_papers.paper_id = papers.id").
				Where("project_papers.project_id = ?", projectID)
		}
		if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 {
			query = query.Limit(limit)
		}
		if offset, err := strconv.Atoi(c.Query("offset")); err == nil && offset > 0 {
			query = query.Offset(offset)
		}

		var papers []models.Paper
		if err := query.Order("created_at desc").Find(&papers).Error; err != nil {
			log.Error("Database query for papers failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, papers)
	})

	rg.POST("", func(c *gin.Context) {
		user := auth.CurrentUser(c)
		var req struct {
			ArxivURL string `json:"arxiv_url"`
			DOI      string `json:"doi"`
			PMID     string `json:"pmid"`
			Style    string `json:"style"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		// Exactly one identifier field selects the source.
		var source, identifier string
		switch {
		case req.ArxivURL != "" && req.DOI == "" && req.PMID == "":
			source, identifier = models.SourceArxiv, req.ArxivURL
		case req.DOI != "" && req.ArxivURL == "" && req.PMID == "":
			source, identifier = models.SourceCrossref, req.DOI
		case req.PMID != "" && req.ArxivURL == "" && req.DOI == "":
			source, identifier = models.SourcePubMed, req.PMID
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "exactly one of arxiv_url, doi or pmid is required"})
			return
		}

		style := req.Style
		if style == "" {
			style = user.DefaultStyle
		}
		paper, err := ingest.IngestByIdentifier(c.Request.Context(), user.ID, source, identifier, style)
		if err != nil {
			respondServiceError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, paper)
	})

	rg.POST("/upload", func(c *gin.Context) {
		user := auth.CurrentUser(c)
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "a PDF file upload is required"})
			return
		}
		if fileHeader.Size > int64(cfg.MaxUploadMB)*1024*1024 {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("file exceeds the %d MB limit", cfg.MaxUploadMB)})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read upload"})
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read upload"})
			return
		}

		style := c.PostForm("style")
		if style == "" {
			style = user.DefaultStyle
		}
		paper, err := ingest.IngestUpload(c.Request.Context(), user.ID, fileHeader.Filename, data, style)
		if err != nil {
			respondServiceError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, paper)
	})

	rg.GET("/:id", func(c *gin.Context) {
		paper, ok := loadUserPaper(c, db)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, paper)
	})

	rg.DELETE("/:id", func(c *gin.Context) {
		paper, ok := loadUserPaper(c, db)
		if !ok {
			return
		}
		db.Where("paper_id = ?", paper.ID).Delete(&models.ReadingEntry{})
		db.Where("paper_id = ?", paper.ID).Delete(&models.QAExchange{})
		db.Exec("DELETE FROM project_papers WHERE paper_id = ?", paper.ID)
		if err := db.Select("Tags").Delete(paper).Error; err != nil {
			log.Error("Failed to delete paper", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	})

	rg.POST("/:id/summarize", func(c *gin.Context) {
		paper, ok := loadUserPaper(c, db)
		if !ok {
			return
		}
		var req struct {
			Style string `json:"style"`
		}
		// Body is optional; an empty style falls back to the user default.
		c.ShouldBindJSON(&req)
		style := req.Style
		if style == "" {
			style = auth.CurrentUser(c).DefaultStyle
		}
		if err := ingest.SummarizePaper(c.Request.Context(), paper, style); err != nil {
			respondServiceError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, paper)
	})

	rg.POST("/:id/ask", func(c *gin.Context) {
		user := auth.CurrentUser(c)
		paper, ok := loadUserPaper(c, db)
		if !ok {
			return
		}
		var req struct {
			Question string `json:"question" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
			return
		}

		result, err := answerer.Answer(c.Request.Context(), req.Question, paper)
		if err != nil {
			respondServiceError(c, log, err)
			return
		}

		sources, _ := json.Marshal(result.Sources)
		exchange := models.QAExchange{
			UserID:   user.ID,
			PaperID:  paper.ID,
			Question: req.Question,
			Answer:   result.Answer,
			Sources:  sources,
		}
		if err := db.Create(&exchange).Error; err != nil {
			log.Error("Failed to record Q&A exchange", zap.Error(err))
		}
		c.JSON(http.StatusOK, gin.H{
			"id":       exchange.ID,
			"question": req.Question,
			"answer":   result.Answer,
			"sources":  result.Sources,
		})
	})

	rg.GET("/:id/history", func(c *gin.Context) {
		user := auth.CurrentUser(c)
		paper, ok := loadUserPaper(c, db)
		if !ok {
			return
		}
		var exchanges []models.QAExchange
		if err := db.Where("user_id = ? AND paper_id = ?", user.ID, paper.ID).
			Order("created_at desc").Find(&exchanges).Error; err != nil {
			log.Error("Database query for Q&A history failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, exchanges)
	})

	rg.POST("/:id/tags/:tagID", func(c *gin.Context) {
		user := auth.CurrentUser(c)
		paper, ok := loadUserPaper(c, db)
		if !ok {
			return
		}
		tagID, err := strconv.Atoi(c.Param("tagID"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tag id"})
			return
		}
		var tag models.Tag
		if err := db.Where("user_id = ?", user.ID).First(&tag, tagID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "tag not found"})
			return
		}
		if err := db.Model(paper).Association("Tags").Append(&tag); err != nil {
			log.Error("Failed to attach tag", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "tagged"})
	})

	rg.DELETE("/:id/tags/:tagID", func(c *gin.Context) {
		user := auth.CurrentUser(c)
		paper, ok := loadUserPaper(c, db)
		if !ok {
			return
		}
		tagID, err := strconv.Atoi(c.Param("tagID"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tag id"})
			return
		}
		var tag models.Tag
		if err := db.Where("user_id = ?", user.ID).First(&tag, tagID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "tag not found"})
			return
		}
		if err := db.Model(paper).Association("Tags").Delete(&tag); err != nil {
			log.Error("Failed to detach tag", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "untagged"})
	})
}

func setupTagRoutes(router *gin.RouterGroup, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/library/tags")

	rg.GET("", func(c *gin.Context) {
		user := auth.CurrentUser(c)
		var tags []models.Tag
		if err := db.Where("user_id = ?", user.ID).Order("name").Find(&tags).Error; err != nil {
			log.Error("Database query for tags failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, tags)
	})

	rg.POST("", func(c *gin.Context) {
		user := auth.CurrentUser(c)
		var req struct {
			Name  string `json:"name" binding:"required"`
			Color string `json:"color"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}
		tag := models.Tag{UserID: user.ID, Name: req.Name, Color: req.Color}
		if err := db.Create(&tag).Error; err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "tag already exists"})
			return
		}
		c.JSON(http.StatusCreated, tag)
	})

	rg.DELETE("/:id", func(c *gin.Context) {
		user := auth.CurrentUser(c)
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tag id"})
			return
		}
		var tag models.Tag
		if err := db.Where("user_id = ?", user.ID).First(&tag, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "tag not found"})
			return
		}
		db.Exec("DELETE FROM paper_tags WHERE tag_id = ?", tag.ID)
		if err := db.Delete(&tag).Error; err != nil {
			log.Error("Failed to delete tag", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	})
}

func setupProjectRoutes(router *gin.RouterGroup, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/library/projects")

	rg.GET("", func(c *gin.Context) {
		user := auth.CurrentUser(c)
		var projects []models.Project
		if err := db.Where("user_id = ?", user.ID).Order("name").Find(&projects).Error; err != nil {
			log.Error("Database query for projects failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, projects)
	})

	rg.POST("", func(c *gin.Context) {
		user := auth.CurrentUser(c)
		var req struct {
			Name        string `json:"name" binding:"required"`
			Description string `json:"description"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}
		project := models.Project{UserID: user.ID, Name: req.Name, Description: req.Description}
		if err := db.Create(&project).Error; err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "project already exists"})
			return
		}
		c.JSON(http.StatusCreated, project)
	})

	rg.GET("/:id", func(c *gin.Context) {
		user := auth.CurrentUser(c)
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
			return
		}
		var project models.Project
		if err := db.Preload("Papers").Where("user_id = ?", user.ID).First(&project, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		c.JSON(http.StatusOK, project)
	})

	rg.PATCH("/:id", func(c *gin.Context) {
		user := auth.CurrentUser(c)
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
			return
		}
		var req struct {
			Name        *string `json:"name"`
			Description *string `json:"description"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		var project models.Project
		if err := db.Where("user_id = ?", user.ID).First(&project, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		updates := map[string]any{}
		if req.Name != nil && *req.Name != "" {
			updates["name"] = *req.Name
		}
		if req.Description != nil {
			updates["description"] = *req.Description
		}
		if len(updates) > 0 {
			if err := db.Model(&project).Updates(updates).Error; err != nil {
				c.JSON(http.StatusConflict, gin.H{"error": "project name already in use"})
				return
			}
		}
		c.JSON(http.StatusOK, project)
	})

	rg.DELETE("/:id", func(c *gin.Context) {
		user := auth.CurrentUser(c)
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
			return
		}
		var project models.Project
		if err := db.Where("user_id = ?", user.ID).First(&project, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		if err := db.Select("Papers").Delete(&project).Error; err != nil {
			log.Error("Failed to delete project", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	})

	projectPaper := func(c *gin.Context) (*models.Project, *models.Paper, bool) {
		user := auth.CurrentUser(c)
		id, err1 := strconv.Atoi(c.Param("id"))
		paperID, err2 := strconv.Atoi(c.Param("paperID"))
		if err1 != nil || err2 != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return nil, nil, false
		}
		var project models.Project
		if err := db.Where("user_id = ?", user.ID).First(&project, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return nil, nil, false
		}
		var paper models.Paper
		if err := db.Where("user_id = ?", user.ID).First(&paper, paperID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "paper not found"})
			return nil, nil, false
		}
		return &project, &paper, true
	}

	rg.POST("/:id/papers/:paperID", func(c *gin.Context) {
		project, paper, ok := projectPaper(c)
		if !ok {
			return
		}
		if err := db.Model(project).Association("Papers").Append(paper); err != nil {
			log.Error("Failed to add paper to project", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "added"})
	})

	rg.DELETE("/:id/papers/:paperID", func(c *gin.Context) {
		project, paper, ok := projectPaper(c)
		if !ok {
			return
		}
		if err := db.Model(project).Association("Papers").Delete(paper); err != nil {
			log.Error("Failed to remove paper from project", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "removed"})
	})
}

func setupReadingRoutes(router *gin.RouterGroup, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/library/reading")

	rg.GET("", func(c *gin.Context) {
		user := auth.CurrentUser(c)
		query := db.Preload("Paper").Where("user_id = ?", user.ID)
		if status := c.Query("status"); status != "" {
			if !models.ValidReadingStatus(status) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown reading status"})
				return
			}
			query = query.Where("status = ?", status)
		}
		var entries []models.ReadingEntry
		if err := query.Order("updated_at desc").Find(&entries).Error; err != nil {
			log.Error("Database query for reading list failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, entries)
	})

	rg.PUT("/:paperID", func(c *gin.Context) {
		user := auth.CurrentUser(c)
		paperID, err := strconv.Atoi(c.Param("paperID"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid paper id"})
			return
		}
		var req struct {
			Status string `json:"status" binding:"required"`
			Note   string `json:"note"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || !models.ValidReadingStatus(req.Status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status must be unread, reading or read"})
			return
		}
		var paper models.Paper
		if err := db.Where("user_id = ?", user.ID).First(&paper, paperID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "paper not found"})
			return
		}

		var entry models.ReadingEntry
		err = db.Where("user_id = ? AND paper_id = ?", user.ID, paper.ID).First(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			entry = models.ReadingEntry{UserID: user.ID, PaperID: paper.ID}
		} else if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		entry.Status = req.Status
		entry.Note = req.Note
		if err := db.Save(&entry).Error; err != nil {
			log.Error("Failed to save reading entry", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, entry)
	})

	rg.DELETE("/:paperID", func(c *gin.Context) {
		user := auth.CurrentUser(c)
		paperID, err := strconv.Atoi(c.Param("paperID"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid paper id"})
			return
		}
		if err := db.Where("user_id = ? AND paper_id = ?", user.ID, paperID).Delete(&models.ReadingEntry{}).Error; err != nil {
			log.Error("Failed to delete reading entry", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	})
}

func setupExportRoutes(router *gin.RouterGroup, db *gorm.DB, log *zap.Logger) {
	router.GET("/library/export", func(c *gin.Context) {
		user := auth.CurrentUser(c)
		format := c.DefaultQuery("format", services.FormatBibTeX)
		if !services.ValidExportFormat(format) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "format must be bibtex, ris, csv or markdown"})
			return
		}

		query := db.Where("user_id = ?", user.ID)
		if projectID, err := strconv.Atoi(c.Query("project_id")); err == nil {
			query = query.Joins("JOIN project_papers ON project_papers.paper_id = papers.id").
				Where("project_papers.project_id = ?", projectID)
		}

		var papers []models.Paper
		if err := query.Order("created_at").Find(&papers).Error; err != nil {
			log.Error("Database query for export failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		out, err := services.ExportPapers(papers, format)
		if err != nil {
			log.Error("Export rendering failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=library.%s", exportExtension(format)))
		c.Data(http.StatusOK, services.ContentType(format), []byte(out))
	})
}

func exportExtension(format string) string {
	switch format {
	case services.FormatBibTeX:
		return "bib"
	case services.FormatRIS:
		return "ris"
	case services.FormatCSV:
		return "csv"
	default:
		return "md"
	}
}

func setupDiscoverRoutes(router *gin.RouterGroup, s2 *semanticscholar.Client, log *zap.Logger) {
	rg := router.Group("/discover")

	limitParam := func(c *gin.Context) int {
		limit, _ := strconv.Atoi(c.Query("limit"))
		return limit
	}

	rg.GET("/search", func(c *gin.Context) {
		q := c.Query("q")
		if q == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
			return
		}
		papers, err := s2.SearchPapers(c.Request.Context(), q, limitParam(c))
		if err != nil {
			respondServiceError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, papers)
	})

	byID := func(fetch func(c *gin.Context, id string) (any, error)) gin.HandlerFunc {
		return func(c *gin.Context) {
			id := c.Query("id")
			if id == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
				return
			}
			out, err := fetch(c, id)
			if err != nil {
				respondServiceError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, out)
		}
	}

	rg.GET("/citations", byID(func(c *gin.Context, id string) (any, error) {
		return s2.Citations(c.Request.Context(), id, limitParam(c))
	}))
	rg.GET("/references", byID(func(c *gin.Context, id string) (any, error) {
		return s2.References(c.Request.Context(), id, limitParam(c))
	}))
	rg.GET("/related", byID(func(c *gin.Context, id string) (any, error) {
		return s2.Related(c.Request.Context(), id, limitParam(c))
	}))
}

// refreshCitationCounts walks the stored papers that carry a resolvable
// identifier and refreshes their citation counts.
func refreshCitationCounts(db *gorm.DB, s2 *semanticscholar.Client, log *zap.Logger) {
	var papers []models.Paper
	if err := db.Where("source_type IN ?", []string{models.SourceArxiv, models.SourceCrossref, models.SourcePubMed}).
		Find(&papers).Error; err != nil {
		log.Error("Failed to load papers for citation refresh", zap.Error(err))
		return
	}

	updated := 0
	for _, paper := range papers {
		id := semanticscholar.LookupID(&paper)
		if id == "" {
			continue
		}
		count, err := s2.CitationCount(context.Background(), id)
		if err != nil {
			log.Debug("Citation lookup failed", zap.String("id", id), zap.Error(err))
			continue
		}
		if count != paper.CitationCount {
			db.Model(&paper).Update("citation_count", count)
			updated++
		}
	}
	log.Info("Citation refresh completed", zap.Int("papers", len(papers)), zap.Int("updated", updated))
}
