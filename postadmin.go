// Package postadmin is the admin panel for blog posts: a list/create/edit
// screen with a draft/published workflow, unique slugs, filtered listing,
// featured images and bulk delete, built with Go, Echo, and templ.
//
// Users provide their own templ templates via the ViewFuncs struct (the views
// package ships a default set), and postadmin handles the handler logic,
// middleware, and database operations.
package postadmin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path/filepath"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/postadmin/events"
)

// ViewFuncs holds the templ components the framework renders. Swapping them
// changes every admin page without touching handler logic.
type ViewFuncs struct {
	AdminLogin  func(showError bool, csrfToken string) templ.Component
	AdminPosts  func(v PostsView) templ.Component
	AdminForm   func(v FormView) templ.Component
	NotFound    func() templ.Component
	ServerError func() templ.Component
}

// PostsView is the data behind the listing screen.
type PostsView struct {
	Meta      PageMeta
	Page      ListPage
	Query     ListQuery
	Message   string
	CSRFToken string
}

// FormValues are the raw form values echoed back into the form.
type FormValues struct {
	Name        string
	CategoryID  string
	AuthorID    string
	Status      string
	Slug        string
	Description string
}

// FormView is the data behind the create and edit form.
type FormView struct {
	Meta       PageMeta
	Post       *Post // nil when creating
	Values     FormValues
	ImageURL   string
	Categories []Category
	Authors    []Author
	Errors     map[string]string
	CSRFToken  string
}

// Editing reports whether the form edits an existing post.
func (v FormView) Editing() bool {
	return v.Post != nil
}

// App is the central postadmin application. It wires together the store,
// caches, form controller, handlers, middleware, and templates.
type App struct {
	Config     SiteConfig
	Echo       *echo.Echo
	Store      *Store
	Categories *CategoryCache
	Forms      *FormController
	Assets     AssetStore
	Publisher  events.Publisher
	Views      ViewFuncs
	Logger     *zap.Logger

	loginLimiter *LoginLimiter
	customRoutes []func(*App)
	closers      []func() error
	initialized  bool
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithLogger replaces the no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) {
		a.Logger = l
	}
}

// WithStore uses an already opened store instead of opening one from config.
func WithStore(s *Store) Option {
	return func(a *App) {
		a.Store = s
	}
}

// WithAssetStore overrides the asset backend picked from config.
func WithAssetStore(s AssetStore) Option {
	return func(a *App) {
		a.Assets = s
	}
}

// WithPublisher overrides the event publisher picked from config.
func WithPublisher(p events.Publisher) Option {
	return func(a *App) {
		a.Publisher = p
	}
}

// New creates a new postadmin App with the given configuration and views.
func New(cfg SiteConfig, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		Views:  views,
		Logger: zap.NewNop(),
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init opens the store and collaborators that were not injected, then
// installs middleware and routes. Start calls it; tests call it directly and
// drive a.Echo with httptest.
func (a *App) Init(ctx context.Context) error {
	if a.initialized {
		return nil
	}
	if a.Config.AdminPassword == "" && a.Config.AdminPasswordHash == "" {
		return fmt.Errorf("postadmin: AdminPassword is required")
	}
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("postadmin: SessionSecret is required")
	}

	if a.Store == nil {
		store, err := OpenStore(a.Config.DatabaseDriver, a.Config.DatabasePath, a.Config.DatabaseURL)
		if err != nil {
			return fmt.Errorf("postadmin: init store: %w", err)
		}
		a.Store = store
		a.closers = append(a.closers, store.Close)
	}

	if a.Assets == nil {
		assets, err := a.openAssetStore(ctx)
		if err != nil {
			return fmt.Errorf("postadmin: init assets: %w", err)
		}
		a.Assets = assets
	}

	if a.Publisher == nil {
		a.Publisher = events.NoopPublisher{}
		if a.Config.RabbitMQURL != "" {
			pub, err := events.NewRabbitMQPublisher(a.Config.RabbitMQURL)
			if err != nil {
				// Posts still save without the broker; only notifications are lost.
				a.Logger.Warn("rabbitmq unavailable, events disabled", zap.Error(err))
			} else {
				a.Publisher = pub
				a.closers = append(a.closers, pub.Close)
			}
		}
	}

	a.Categories = NewCategoryCache(a.Store, a.Config.CategoryCacheTTL)
	a.Forms = NewFormController(a.Store, a.Categories, a.Store, a.Assets, a.Publisher, a.Logger)

	a.loginLimiter = NewLoginLimiter(5, time.Minute)
	a.closers = append(a.closers, a.loginLimiter.Stop)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.initialized = true
	return nil
}

func (a *App) openAssetStore(ctx context.Context) (AssetStore, error) {
	switch a.Config.AssetBackend {
	case "", "local":
		return NewLocalAssetStore(a.Config.UploadsDir), nil
	case "s3":
		client, err := NewS3Client(ctx, a.Config.AWSRegion, a.Config.S3Endpoint)
		if err != nil {
			return nil, err
		}
		return NewS3AssetStore(client, a.Config.S3Bucket, a.Config.S3PublicURL), nil
	}
	return nil, fmt.Errorf("unknown asset backend %q", a.Config.AssetBackend)
}

// Start initializes the app and starts the server.
func (a *App) Start() error {
	if err := a.Init(context.Background()); err != nil {
		return err
	}
	a.Logger.Info("server started", zap.String("addr", a.Config.Addr))
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

func (a *App) setupRoutes() {
	e := a.Echo

	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := echo.WrapHandler(http.StripPrefix("/assets/", http.FileServer(http.FS(embeddedFS))))
	e.GET("/assets/admin.css", embeddedHandler)
	e.GET("/assets/admin.js", embeddedHandler)

	if local, ok := a.Assets.(*LocalAssetStore); ok {
		e.Static("/uploads", filepath.Join(local.Root(), "uploads"))
	}
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/healthz", a.handleHealth)

	e.GET("/admin/", a.handleAdmin)
	e.POST("/admin/login/", a.handleAdminLogin)
	e.POST("/admin/logout/", handleAdminLogout)

	admin := e.Group("/admin/posts", requireAdmin)
	admin.GET("/new/", a.handleAdminNewPost)
	admin.POST("/", a.handleAdminCreate)
	admin.POST("/bulk-delete/", a.handleAdminBulkDelete)
	admin.GET("/:id/edit/", a.handleAdminEditPost)
	admin.POST("/:id/", a.handleAdminUpdate)
	admin.DELETE("/:id/", a.handleAdminDelete)

	a.registerAPI()
}

// Close releases every resource Init opened. Call it on shutdown.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	_ = a.Logger.Sync()
	return errors.Join(errs...)
}

func (a *App) meta(title string) PageMeta {
	return PageMeta{Title: title, Site: a.Config.Name}
}
