package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"seorocket/internal/coherence"
	"seorocket/internal/config"
	"seorocket/internal/handler"
	"seorocket/internal/legacy"
	"seorocket/internal/realtime"
	"seorocket/internal/repository"
	"seorocket/internal/search"
	"seorocket/internal/service"
	"seorocket/pkg/database"
	"seorocket/pkg/log"
	"seorocket/pkg/token"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	flag.Parse()

	config.Init(*configPath)
	cfg := config.Conf

	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()

	log.Info("Server starting")

	database.Init(cfg.Database.Driver, cfg.Database.DSN)
	if err := database.RunMigrate(database.DB); err != nil {
		log.Fatal("Failed to run migrations", err)
		return
	}
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)

	// rootCtx 在收到停机信号时取消，后台 goroutine 都挂在它上面
	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	hub := realtime.NewHub()
	if database.RDB != nil {
		bridge := realtime.NewRedisBridge(database.RDB, cfg.Realtime.RedisChannel, hub)
		go func() {
			if err := bridge.Start(rootCtx); err != nil {
				log.Error("realtime: redis bridge stopped", err)
			}
		}()
	}

	// 未配置数据库时仓库保持 nil 接口，服务层据此返回空结果或 ErrNotConfigured
	var (
		productRepo    repository.ProductRepository
		tagRepo        repository.TagRepository
		productTagRepo repository.ProductTagRepository
		blogRepo       repository.BlogPostRepository
		userRepo       repository.UserRepository
		blacklist      repository.TokenBlacklist
	)
	if database.DB != nil {
		productRepo = repository.NewProductRepository(database.DB)
		tagRepo = repository.NewTagRepository(database.DB)
		productTagRepo = repository.NewProductTagRepository(database.DB)
		blogRepo = repository.NewBlogPostRepository(database.DB)
		userRepo = repository.NewUserRepository(database.DB)
	}
	if database.RDB != nil {
		blacklist = repository.NewRedisTokenBlacklist(database.RDB)
	}

	jwtManager := token.NewJWTManager(
		cfg.JWT.Secret,
		time.Duration(cfg.JWT.AccessTokenExpireHours)*time.Hour,
		time.Duration(cfg.JWT.RefreshTokenExpireDays)*24*time.Hour,
	)

	membershipService := service.NewMembershipService(productTagRepo, productRepo, hub)
	productService := service.NewProductService(productRepo, productTagRepo, tagRepo, membershipService, hub)
	tagService := service.NewTagService(tagRepo, productRepo, hub)
	blogService := service.NewBlogService(blogRepo, hub)
	userService := service.NewUserService(userRepo, blacklist, jwtManager)
	exportService := service.NewExportService(productService, tagService, membershipService)
	resolver := service.NewResolver(productRepo, productTagRepo, tagRepo)

	if cfg.Admin.Username != "" && cfg.Admin.Password != "" && userRepo != nil {
		if err := userService.EnsureAdmin(rootCtx, cfg.Admin.Username, cfg.Admin.Password); err != nil {
			log.Error("Failed to bootstrap admin account", err)
		}
	}

	// 公开目录的数据源：有数据库时走 ProductService，否则读旧版 JSON 文件
	legacyStore := legacy.NewStore(cfg.Legacy.DataFile)
	var catalogSource handler.ProductLister = productService
	if database.DB == nil {
		log.Warnf("catalog served from %s", legacyStore.Path())
		catalogSource = legacyStore
	}

	view := coherence.NewView(coherence.NewHubSource(hub, 0), catalogSource, resolver, coherence.Options{
		DataDebounce:  cfg.Realtime.DataDebounce,
		FocusDebounce: cfg.Realtime.FocusDebounce,
		PollInterval:  cfg.Realtime.PollInterval,
		Coalesce:      cfg.Realtime.Coalesce,
	})
	if err := view.Open(rootCtx); err != nil {
		log.Warnf("catalog view opened with error: %v", err)
	}
	// 服务端视图没有"窗口焦点"，保持轮询以兜住漏掉的事件
	view.Focus()

	var searcher handler.ProductSearcher
	if cfg.Search.Enabled {
		es, err := search.NewClient(cfg.Search.Addresses, nil)
		if err != nil {
			log.Error("search: failed to create elasticsearch client, search disabled", err)
		} else {
			indexer := search.NewIndexer(es, cfg.Search.Index, productService)
			searcher = indexer
			sub := hub.Subscribe(0, realtime.TableFilter(realtime.TableProducts), realtime.TableFilter(realtime.TableProductTags))
			go indexer.Run(rootCtx, sub)
			go func() {
				products, err := productService.List(rootCtx, true)
				if err != nil {
					log.Warnf("search: initial reindex skipped: %v", err)
					return
				}
				if err := indexer.Reindex(rootCtx, products); err != nil {
					log.Warnf("search: initial reindex failed: %v", err)
				}
			}()
		}
	}

	r := setupRouter(cfg, routes{
		jwtManager: jwtManager,
		users:      userService,
		catalog:    handler.NewCatalogHandler(resolver, catalogSource, view),
		products:   handler.NewProductHandler(productService, view, legacyStore),
		tags:       handler.NewTagHandler(tagService, membershipService, view),
		blog:       handler.NewBlogHandler(blogService),
		user:       handler.NewUserHandler(userService),
		legacy:     handler.NewLegacyHandler(legacyStore),
		search:     handler.NewSearchHandler(searcher),
		export:     handler.NewExportHandler(exportService),
		realtime:   realtime.NewWebsocketHandler(hub, cfg.Server.AllowedOrigins),
	})

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}
	// 视图必须先于 hub 关闭，之后不会再有定时重载
	_ = view.Close()
	stop()
	hub.Close()
	if database.RDB != nil {
		_ = database.RDB.Close()
	}

	log.Info("服务已优雅关闭")
}
