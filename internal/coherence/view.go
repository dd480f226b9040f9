// Package coherence 让本地的目录视图与服务端数据保持最终一致：
// 订阅变更事件，防抖后整体重新加载，聚焦时定期轮询。
package coherence

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"seorocket/internal/model"
	"seorocket/internal/realtime"
	"seorocket/internal/service"
	"seorocket/pkg/log"
)

const (
	DefaultDataDebounce  = 500 * time.Millisecond
	DefaultFocusDebounce = time.Second
	DefaultPollInterval  = 10 * time.Second
)

var (
	ErrClosed       = errors.New("coherence: view is closed")
	ErrStreamClosed = errors.New("coherence: change stream closed")
)

// State 是订阅连接状态
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ProductLoader 加载范围内的全部产品
type ProductLoader interface {
	List(ctx context.Context, includeUnpublished bool) ([]model.Product, error)
}

type Options struct {
	Filter        string
	IsAdmin       bool
	DataDebounce  time.Duration
	FocusDebounce time.Duration
	PollInterval  time.Duration
	// Coalesce 为 true 时连续事件共用一个定时器（重置），只触发一次重载；
	// 为 false 时每个事件各自安排一次延迟重载。
	Coalesce bool
	Tables   []string
}

func DefaultOptions() Options {
	return Options{
		Filter:        model.FilterAll,
		DataDebounce:  DefaultDataDebounce,
		FocusDebounce: DefaultFocusDebounce,
		PollInterval:  DefaultPollInterval,
		Coalesce:      true,
		Tables:        []string{realtime.TableProducts, realtime.TableTags, realtime.TableProductTags},
	}
}

// Snapshot 是一次重载的结果。Products 是范围内全部产品，Visible 是当前筛选的有序结果。
type Snapshot struct {
	Filter   string                   `json:"filter"`
	Source   service.ResolutionSource `json:"source"`
	Products []model.Product          `json:"-"`
	Visible  []model.Product          `json:"products"`
	Filters  []string                 `json:"filters"`
	LoadedAt time.Time                `json:"loaded_at"`
}

// View 持有当前筛选、最近一次快照、连接状态与防抖定时器。
// 用完必须 Close，否则定时器与轮询会继续运行。
type View struct {
	source   Source
	products ProductLoader
	resolver service.Resolver
	opts     Options

	mu       sync.Mutex
	state    State
	filter   string
	snapshot Snapshot
	// streamErr 与 loadErr 分别记录订阅和加载的最近错误
	streamErr error
	loadErr   error
	stream    Stream
	gen       uint64
	shared    *time.Timer
	timers    map[*time.Timer]struct{}
	focused   bool
	closed    bool
	opened    bool

	reloadMu sync.Mutex
	reloads  atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewView(source Source, products ProductLoader, resolver service.Resolver, opts Options) *View {
	def := DefaultOptions()
	if opts.DataDebounce <= 0 {
		opts.DataDebounce = def.DataDebounce
	}
	if opts.FocusDebounce <= 0 {
		opts.FocusDebounce = def.FocusDebounce
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if len(opts.Tables) == 0 {
		opts.Tables = def.Tables
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &View{
		source:   source,
		products: products,
		resolver: resolver,
		opts:     opts,
		filter:   service.CanonicalFilter(opts.Filter),
		timers:   make(map[*time.Timer]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Open 订阅变更、完成首次加载并启动轮询循环。
// 订阅失败不影响首次加载：视图照常可读，只是停留在 disconnected，错误可从 Err 取得。
func (v *View) Open(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	if v.opened {
		v.mu.Unlock()
		return nil
	}
	v.opened = true
	v.wg.Add(1)
	v.mu.Unlock()
	go v.pollLoop()

	subErr := v.connect(ctx)
	if err := v.Reload(ctx); err != nil {
		return err
	}
	return subErr
}

// Reconnect 关闭当前订阅、清空挂起的重载并重新订阅。
func (v *View) Reconnect(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	v.stopTimersLocked()
	v.dropStreamLocked()
	v.state = StateDisconnected
	v.mu.Unlock()

	if err := v.connect(ctx); err != nil {
		return err
	}
	// 断线期间可能错过事件
	v.schedule(v.opts.DataDebounce)
	return nil
}

func (v *View) connect(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	v.state = StateConnecting
	v.mu.Unlock()

	filters := make([]realtime.Filter, 0, len(v.opts.Tables))
	for _, table := range v.opts.Tables {
		filters = append(filters, realtime.Filter{Schema: realtime.DefaultSchema, Table: table, Event: realtime.EventAny})
	}

	var (
		stream Stream
		err    error
	)
	if v.source == nil {
		err = errors.New("coherence: no change source configured")
	} else {
		stream, err = v.source.Subscribe(ctx, filters)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if err != nil {
		v.state = StateDisconnected
		v.streamErr = err
		log.Warnf("coherence: subscribe failed: %v", err)
		return err
	}
	if v.closed {
		_ = stream.Close()
		return ErrClosed
	}
	v.gen++
	v.stream = stream
	v.state = StateConnected
	v.streamErr = nil
	v.wg.Add(1)
	go v.consume(stream, v.gen)
	return nil
}

func (v *View) consume(stream Stream, gen uint64) {
	defer v.wg.Done()
	for evt := range stream.Events() {
		v.HandleEvent(evt)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || v.gen != gen {
		return
	}
	v.stream = nil
	v.state = StateDisconnected
	v.streamErr = ErrStreamClosed
	log.Warn("coherence: change stream closed, view is disconnected")
}

func (v *View) dropStreamLocked() {
	if v.stream != nil {
		_ = v.stream.Close()
		v.stream = nil
	}
	v.gen++
}

// HandleEvent 收到变更事件后在 DataDebounce 之后安排一次重载
func (v *View) HandleEvent(evt realtime.ChangeEvent) {
	log.Debugf("coherence: %s on %s, scheduling reload", evt.Type, evt.Table)
	v.schedule(v.opts.DataDebounce)
}

// Focus 回到前台：FocusDebounce 后重载，并开始轮询
func (v *View) Focus() {
	v.mu.Lock()
	v.focused = true
	v.mu.Unlock()
	v.schedule(v.opts.FocusDebounce)
}

// Blur 进入后台，停止轮询
func (v *View) Blur() {
	v.mu.Lock()
	v.focused = false
	v.mu.Unlock()
}

func (v *View) schedule(d time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	if v.opts.Coalesce {
		if v.shared != nil {
			v.shared.Stop()
		}
		v.shared = time.AfterFunc(d, v.fire)
		return
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		v.mu.Lock()
		delete(v.timers, t)
		v.mu.Unlock()
		v.fire()
	})
	v.timers[t] = struct{}{}
}

func (v *View) fire() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.wg.Add(1)
	v.mu.Unlock()
	defer v.wg.Done()

	if err := v.Reload(v.ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Warnf("coherence: scheduled reload failed: %v", err)
	}
}

func (v *View) stopTimersLocked() {
	if v.shared != nil {
		v.shared.Stop()
		v.shared = nil
	}
	for t := range v.timers {
		t.Stop()
		delete(v.timers, t)
	}
}

func (v *View) pollLoop() {
	defer v.wg.Done()
	ticker := time.NewTicker(v.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-v.ctx.Done():
			return
		case <-ticker.C:
			v.mu.Lock()
			focused := v.focused
			v.mu.Unlock()
			if focused {
				if err := v.Reload(v.ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Warnf("coherence: poll reload failed: %v", err)
				}
			}
		}
	}
}

// Reload 重新加载范围内产品并按当前筛选重新解析。
// 产品加载失败时沿用上一次快照中的产品作为内存回退的数据源，错误记录在 Err 中。
func (v *View) Reload(ctx context.Context) error {
	v.reloadMu.Lock()
	defer v.reloadMu.Unlock()

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	filter := v.filter
	cached := v.snapshot.Products
	v.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	var loadErr error
	products := cached
	if v.products != nil {
		fresh, err := v.products.List(ctx, v.opts.IsAdmin)
		if err != nil {
			loadErr = err
			log.Warnf("coherence: failed to load products, keeping cached copy: %v", err)
		} else {
			products = fresh
		}
	}

	var (
		visible []model.Product
		filters = append([]string{}, model.SystemFilters...)
		source  = service.SourceEmpty
	)
	if v.resolver != nil {
		res := v.resolver.ResolveWithCache(ctx, filter, v.opts.IsAdmin, products)
		visible, source = res.Products(), res.Source()
		filters = v.resolver.ListAvailableFilters(ctx, products, v.opts.IsAdmin)
	}
	if visible == nil {
		visible = []model.Product{}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	if v.filter != filter {
		// SetFilter 在加载期间改了筛选，后续那次重载会覆盖
		return nil
	}
	v.snapshot = Snapshot{
		Filter:   filter,
		Source:   source,
		Products: products,
		Visible:  visible,
		Filters:  filters,
		LoadedAt: time.Now(),
	}
	v.loadErr = loadErr
	v.reloads.Add(1)
	return nil
}

// SetFilter 切换筛选并立即重载
func (v *View) SetFilter(ctx context.Context, name string) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	v.filter = service.CanonicalFilter(name)
	v.mu.Unlock()
	return v.Reload(ctx)
}

// Resolve 按任意筛选解析，使用当前快照中的产品作为内存回退数据，不改变视图自身的筛选。
func (v *View) Resolve(ctx context.Context, name string) service.Resolution {
	v.mu.Lock()
	cached := v.snapshot.Products
	v.mu.Unlock()
	if v.resolver == nil {
		return service.EmptyResult{Filter: service.CanonicalFilter(name)}
	}
	return v.resolver.ResolveWithCache(ctx, name, v.opts.IsAdmin, cached)
}

func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshot
}

func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Err 返回最近一次订阅或加载错误
func (v *View) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.loadErr != nil {
		return v.loadErr
	}
	return v.streamErr
}

func (v *View) Filter() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.filter
}

// Reloads 返回已完成的重载次数
func (v *View) Reloads() int64 {
	return v.reloads.Load()
}

// Close 取消全部定时器、停止轮询并关闭订阅。可重复调用，返回后不会再有重载发生。
func (v *View) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	v.stopTimersLocked()
	v.dropStreamLocked()
	v.state = StateDisconnected
	v.mu.Unlock()

	v.cancel()
	v.wg.Wait()
	return nil
}

// setVisible 用于乐观更新
func (v *View) setVisible(visible []model.Product) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.snapshot.Visible = visible
}
