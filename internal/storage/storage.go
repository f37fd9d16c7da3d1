package storage

import (
	"context"
	"errors"
	"fmt"

	"crmchat/backend/internal/config"
	"crmchat/backend/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// ErrNotFound is returned when a looked-up record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrNoRedis is returned by presence queries when no Redis client is configured.
	ErrNoRedis = errors.New("redis presence mirror disabled")
)

// Content is the body of a message: text, a stored file, or both.
type Content struct {
	Text     string
	File     string
	FileName string
}

// Storage is everything the chat core and the REST layer need from persistence.
type Storage interface {
	SaveDirectMessage(ctx context.Context, sender, recipient string, c Content) (*models.Message, error)
	SaveGroupMessage(ctx context.Context, sender, groupID string, c Content) (*models.Message, error)
	ListMessagesBetween(ctx context.Context, userA, userB string) ([]models.Message, error)
	ListGroupMessages(ctx context.Context, groupID string) ([]models.GroupMessageView, error)
	MarkDirectRead(ctx context.Context, recipient, sender string) (int64, error)
	MarkGroupRead(ctx context.Context, userID, groupID string) (int64, error)
	UnreadCounts(ctx context.Context, userID string) (map[string]int64, error)
	GroupUnreadCounts(ctx context.Context, userID string) (map[string]int64, error)

	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, recipient string) ([]models.Notification, error)
	MarkNotificationsSeen(ctx context.Context, recipient string) (int64, error)

	SaveAdmin(ctx context.Context, admin *models.Admin) error
	GetAdminByID(ctx context.Context, id string) (*models.Admin, error)
	ListAdmins(ctx context.Context, organization, exclude string) ([]models.Admin, error)
	SaveChatRoom(ctx context.Context, room *models.ChatRoom) error
	GetChatRoom(ctx context.Context, id string) (*models.ChatRoom, error)

	SetOnline(ctx context.Context, identity string) error
	SetOffline(ctx context.Context, identity string) error
	OnlineUsers(ctx context.Context) ([]string, error)
}

// Service implements Storage on gorm, with an optional Redis client for presence.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
	}
}

// Open connects to the database selected by driver.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case config.DriverPostgres:
		dialector = postgres.Open(dsn)
	case config.DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == config.DriverSQLite {
		// SQLite allows one writer; a single connection also keeps :memory: databases alive.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Migrate creates or updates every table the chat backend owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Admin{},
		&models.ChatRoom{},
		&models.Message{},
		&models.Notification{},
	)
}

func notFound(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("get %s %s: %w", what, id, err)
}
