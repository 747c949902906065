package main

import (
	"context"
	"log"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourorg/doc-publisher/internal/bucketstore"
	"github.com/yourorg/doc-publisher/internal/config"
	"github.com/yourorg/doc-publisher/internal/fetch"
	"github.com/yourorg/doc-publisher/internal/handler"
	"github.com/yourorg/doc-publisher/internal/metrics"
	"github.com/yourorg/doc-publisher/internal/mount"
	"github.com/yourorg/doc-publisher/internal/s3meta"
)

func main() {
	cfg := config.FromEnv()

	// Structured logger (zap)
	zl := newZap(cfg.LogLevel)
	defer zl.Sync()

	// Metrics server
	metrics.Init()
	go func() {
		_ = metrics.Serve(metrics.AddrFromEnv())
	}()

	fetcher := fetch.New(fetch.Config{
		BaseURL:   cfg.UpstreamURL,
		Token:     cfg.UpstreamToken,
		UserAgent: "doc-publisher/1.0",
		Timeout:   cfg.FetchTimeout,
	})
	mounts := mount.FetchSource{Fetcher: fetcher}

	// One store client per invocation; Close releases its connections.
	openStore := func(ctx context.Context, bucket, mountURL string) (handler.Store, error) {
		api, closer, err := bucketstore.NewAWS(ctx, bucketstore.AWSConfig{
			Region:    cfg.Region,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		})
		if err != nil {
			return nil, err
		}
		return bucketstore.New(api, bucket, bucketstore.Options{
			Region:   cfg.Region,
			Template: cfg.TemplateBucket,
			Tags:     map[string]string{"mount": s3meta.EscapeTagValue(mountURL)},
			ReadOnly: cfg.ReadOnly,
			Closer:   closer,
		}), nil
	}

	h := handler.New(fetcher, mounts, openStore, zl)

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "X-Error"},
	}))

	r.POST("/v1/docs/:owner/:repo/:ref/*path", func(c *gin.Context) {
		p := handler.Params{
			Owner:           c.Param("owner"),
			Repo:            c.Param("repo"),
			Ref:             c.Param("ref"),
			Path:            c.Param("path"),
			Prefix:          c.DefaultQuery("prefix", handler.LivePrefix),
			Action:          c.DefaultQuery("action", handler.ActionUpdate),
			UseLastModified: strings.EqualFold(c.Query("useLastModified"), "true"),
			RequestID:       requestID(c),
		}
		res := h.Handle(c.Request.Context(), p)
		for k, vals := range res.Header {
			for _, v := range vals {
				c.Header(k, v)
			}
		}
		c.Data(res.Status, res.Header.Get("Content-Type"), res.Body)
	})

	zl.Info("server starting", zap.String("port", cfg.Port), zap.Bool("readOnly", cfg.ReadOnly))
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func requestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-Id"); id != "" {
		return id
	}
	return uuid.NewString()
}

func newZap(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
