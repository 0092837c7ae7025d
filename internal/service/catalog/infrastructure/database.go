package infrastructure

import (
	"context"
	"github.com/ecom2122/ecom/internal/pkg/bootstrap"
	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"net"
	"strconv"
	"time"
)

// MySQLDSN 使用驱动自带的 Config 拼装 DSN，避免手写转义
func MySQLDSN(cfg bootstrap.DatabaseConfig) string {
	c := mysql.NewConfig()
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	c.DBName = cfg.Name
	c.ParseTime = true
	c.Loc = time.UTC
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}

// OpenDatabase 根据配置打开 MySQL 或 SQLite
func OpenDatabase(cfg bootstrap.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql":
		dialector = gormmysql.Open(MySQLDSN(cfg))
	case "sqlite", "":
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		return nil, errors.Errorf("unsupported database driver %q", cfg.Driver)
	}

	level := gormlogger.Warn
	if cfg.Debug {
		level = gormlogger.Info
	}
	// SQL 日志走 zerolog，和业务日志统一输出
	gormLog := gormlogger.New(&log.Logger, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get sql.DB")
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		// SQLite 内存库随最后一个连接关闭而消失，空闲连接数不能小于最大连接数
		sqlDB.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}

// Locker 是迁移期间使用的分布式锁
type Locker interface {
	Lock(ctx context.Context) error
	Unlock() error
}

// Migrate 创建或更新表结构。多实例同时启动时传入 locker，保证只有一个实例在做 DDL。
func Migrate(ctx context.Context, db *gorm.DB, locker Locker) error {
	if locker != nil {
		if err := locker.Lock(ctx); err != nil {
			return errors.Wrap(err, "acquire migration lock")
		}
		defer func() {
			if err := locker.Unlock(); err != nil {
				log.Warn().Err(err).Msg("failed to release migration lock")
			}
		}()
	}
	err := db.WithContext(ctx).AutoMigrate(
		&CategoryModel{},
		&TagModel{},
		&ProductModel{},
		&PromotionModel{},
		&PromotionalCodeModel{},
	)
	return errors.Wrap(err, "auto migrate catalog schema")
}

// Ping 用于 readiness 检查
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

type txKey struct{}

// GormTransactor 是 domain.Transactor 的 GORM 实现，事务句柄放在 context 中向下传递
type GormTransactor struct {
	db *gorm.DB
}

func NewGormTransactor(db *gorm.DB) *GormTransactor {
	return &GormTransactor{db: db}
}

// WithinTransaction 已经处于事务中时直接复用外层事务
func (t *GormTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// conn 返回当前事务句柄，没有事务时返回普通连接
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return db.WithContext(ctx)
}

// lockForUpdate 对 id 对应的行加写锁。SQLite 没有行锁，整库写锁由事务本身提供。
func lockForUpdate(ctx context.Context, db *gorm.DB, model any, id int64) error {
	tx := conn(ctx, db)
	if tx.Dialector.Name() != "sqlite" {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var ids []int64
	if err := tx.Model(model).Where("id = ?", id).Pluck("id", &ids).Error; err != nil {
		return err
	}
	if len(ids) == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
