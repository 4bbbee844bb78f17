package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"gitlab.com/atividade/api/wa-frontdesk/internal/model"
	"gitlab.com/atividade/api/wa-frontdesk/internal/storage"
	"gitlab.com/atividade/api/wa-frontdesk/pkg/logger"
	"gitlab.com/atividade/api/wa-frontdesk/pkg/utils"
)

// Defaults applied when a tunable is absent or not numeric.
const (
	DefaultNotifyInterval = 30 * time.Second
	DefaultAbandonTimeout = 1200 * time.Second
	DefaultReloadInterval = 300000 * time.Millisecond
)

// Tunables is one immutable snapshot of the queue runtime settings.
type Tunables struct {
	NotifyInterval time.Duration
	AbandonTimeout time.Duration
	ReloadInterval time.Duration
}

// DefaultTunables returns the built-in fallback values.
func DefaultTunables() Tunables {
	return Tunables{
		NotifyInterval: DefaultNotifyInterval,
		AbandonTimeout: DefaultAbandonTimeout,
		ReloadInterval: DefaultReloadInterval,
	}
}

// Catalog is one immutable snapshot of the menu content tables. Only
// active rows are loaded; the bot never offers a disabled unit or
// department.
type Catalog struct {
	Units             []model.Unit
	DepartmentsByUnit map[string][]model.Department
	SellersByUnit     map[string][]model.Seller
	PricesByUnit      map[string][]model.PriceItem
}

// ConfigCache keeps a point-in-time snapshot of the settings and menu
// content tables. Refresh replaces the snapshot wholesale; readers never
// see a partial mix of old and new values.
type ConfigCache struct {
	settings storage.SettingsRepo
	catalog  storage.CatalogRepo

	mu       sync.RWMutex
	tunables Tunables
	raw      map[string]string
	snapshot Catalog
	loadedAt time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewConfigCache creates a cache primed with default tunables and an
// empty catalog.
func NewConfigCache(settings storage.SettingsRepo, catalog storage.CatalogRepo) *ConfigCache {
	return &ConfigCache{
		settings: settings,
		catalog:  catalog,
		tunables: DefaultTunables(),
		raw:      map[string]string{},
		snapshot: Catalog{
			DepartmentsByUnit: map[string][]model.Department{},
			SellersByUnit:     map[string][]model.Seller{},
			PricesByUnit:      map[string][]model.PriceItem{},
		},
		stopCh: make(chan struct{}),
	}
}

// Refresh reloads the settings and catalog tables and swaps the snapshot.
func (c *ConfigCache) Refresh(ctx context.Context) error {
	raw, err := c.settings.GetAll(ctx)
	if err != nil {
		return err
	}

	tunables := Tunables{
		NotifyInterval: parseSeconds(ctx, raw, model.SettingNotifyIntervalSeconds, DefaultNotifyInterval),
		AbandonTimeout: parseSeconds(ctx, raw, model.SettingAbandonTimeoutSeconds, DefaultAbandonTimeout),
		ReloadInterval: parseMillis(ctx, raw, model.SettingConfigReloadMillis, DefaultReloadInterval),
	}

	snapshot, err := c.loadCatalog(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.tunables = tunables
	c.raw = raw
	c.snapshot = snapshot
	c.loadedAt = utils.Now()
	c.mu.Unlock()

	logger.FromContext(ctx).Debug("Config cache refreshed",
		zap.Duration("notify_interval", tunables.NotifyInterval),
		zap.Duration("abandon_timeout", tunables.AbandonTimeout),
		zap.Duration("reload_interval", tunables.ReloadInterval),
		zap.Int("keys", len(raw)),
		zap.Int("units", len(snapshot.Units)),
	)
	return nil
}

func (c *ConfigCache) loadCatalog(ctx context.Context) (Catalog, error) {
	snapshot := Catalog{
		DepartmentsByUnit: map[string][]model.Department{},
		SellersByUnit:     map[string][]model.Seller{},
		PricesByUnit:      map[string][]model.PriceItem{},
	}

	units, err := c.catalog.ListUnits(ctx, true)
	if err != nil {
		return snapshot, err
	}
	snapshot.Units = units

	depts, err := c.catalog.ListDepartments(ctx, "", true)
	if err != nil {
		return snapshot, err
	}
	for _, d := range depts {
		snapshot.DepartmentsByUnit[d.UnitID] = append(snapshot.DepartmentsByUnit[d.UnitID], d)
	}

	sellers, err := c.catalog.ListSellers(ctx, "", true)
	if err != nil {
		return snapshot, err
	}
	for _, s := range sellers {
		snapshot.SellersByUnit[s.UnitID] = append(snapshot.SellersByUnit[s.UnitID], s)
	}

	prices, err := c.catalog.ListPriceItems(ctx, "", true)
	if err != nil {
		return snapshot, err
	}
	for _, p := range prices {
		snapshot.PricesByUnit[p.UnitID] = append(snapshot.PricesByUnit[p.UnitID], p)
	}
	return snapshot, nil
}

// Units returns the active units in the snapshot.
func (c *ConfigCache) Units() []model.Unit {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot.Units
}

// FindUnit returns a unit from the snapshot by id.
func (c *ConfigCache) FindUnit(id string) (*model.Unit, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.snapshot.Units {
		if c.snapshot.Units[i].ID == id {
			u := c.snapshot.Units[i]
			return &u, true
		}
	}
	return nil, false
}

// Departments returns the active departments of a unit.
func (c *ConfigCache) Departments(unitID string) []model.Department {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot.DepartmentsByUnit[unitID]
}

// Sellers returns the active sellers of a unit.
func (c *ConfigCache) Sellers(unitID string) []model.Seller {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot.SellersByUnit[unitID]
}

// Prices returns the active price items of a unit.
func (c *ConfigCache) Prices(unitID string) []model.PriceItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot.PricesByUnit[unitID]
}

// Tunables returns the current snapshot.
func (c *ConfigCache) Tunables() Tunables {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tunables
}

// Get returns a raw setting value from the snapshot.
func (c *ConfigCache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.raw[key]
	return v, ok
}

// LoadedAt returns when the snapshot was last refreshed.
func (c *ConfigCache) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

// StartAutoReload refreshes the snapshot in the background. The reload
// cadence itself is a tunable, so the timer is re-armed after each pass.
func (c *ConfigCache) StartAutoReload(ctx context.Context) {
	utils.SafeGo(func() {
		for {
			interval := c.Tunables().ReloadInterval
			timer := time.NewTimer(interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-c.stopCh:
				timer.Stop()
				return
			case <-timer.C:
				if err := c.Refresh(ctx); err != nil {
					logger.FromContext(ctx).Warn("Config cache refresh failed, keeping previous snapshot", zap.Error(err))
				}
			}
		}
	}, nil)
}

// Stop terminates the auto-reload goroutine.
func (c *ConfigCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}

// parseSeconds reads an integer-seconds setting, falling back on bad input.
func parseSeconds(ctx context.Context, raw map[string]string, key string, fallback time.Duration) time.Duration {
	v, ok := raw[key]
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		logger.FromContext(ctx).Warn("Non-numeric setting value, using default",
			zap.String("key", key),
			zap.String("value", v),
			zap.Duration("default", fallback))
		return fallback
	}
	return time.Duration(n) * time.Second
}

// parseMillis reads an integer-milliseconds setting, falling back on bad input.
func parseMillis(ctx context.Context, raw map[string]string, key string, fallback time.Duration) time.Duration {
	v, ok := raw[key]
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		logger.FromContext(ctx).Warn("Non-numeric setting value, using default",
			zap.String("key", key),
			zap.String("value", v),
			zap.Duration("default", fallback))
		return fallback
	}
	return time.Duration(n) * time.Millisecond
}
