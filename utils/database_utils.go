// database_utils should be the canonical place to put shared DB utils.
// It should not include:
// 1. Any util that doesn't manipulate DB
// 2. Any util that contains business logic
package utils

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/Luismorlan/picfeed/model"
	"github.com/Luismorlan/picfeed/utils/flag"
	gormtrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/gorm.io/gorm.v1"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	TestDBPrefix         = "testonlydb_"
	TestDBNameCharLength = 8

	DriverPostgres = "postgres"
	DriverSqlite   = "sqlite"
)

func isTempDB(dbName string) bool {
	return strings.HasPrefix(dbName, TestDBPrefix)
}

func randomTestDBName() string {
	return TestDBPrefix + RandomAlphabetString(TestDBNameCharLength)
}

// GetDBConnection get a connection to the database specified by env. DB_DRIVER selects
// between postgres (default) and sqlite, where DB_NAME is the database file.
func GetDBConnection() (*gorm.DB, error) {
	if os.Getenv("DB_DRIVER") == DriverSqlite {
		return getSqliteDB(os.Getenv("DB_NAME"))
	}
	return GetCustomizedConnection(os.Getenv("DB_NAME"))
}

// GetCustomizedConnection connect to any postgres db
func GetCustomizedConnection(dbName string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable", os.Getenv("DB_HOST"), os.Getenv("DB_USER"), os.Getenv("DB_PASS"), dbName, os.Getenv("DB_PORT"))
	return openTraced(postgres.Open(dsn))
}

func getSqliteDB(dsn string) (*gorm.DB, error) {
	return openTraced(sqlite.Open(dsn))
}

// openTraced registers gorm callbacks that report every statement as a span, parented to
// the context passed through db.WithContext.
func openTraced(dialector gorm.Dialector) (*gorm.DB, error) {
	return gormtrace.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}, gormtrace.WithServiceName(flag.ServiceName+"-db"))
}

// CreateTempDB creates an in-memory database for testing, migrated to the current schema.
// Every call gets its own named database so tests can run in parallel. The database is
// released after the test finishes, user doesn't need to drop it explicitly.
func CreateTempDB(t *testing.T) (*gorm.DB, string) {
	t.Helper()
	dbName := randomTestDBName()
	db, err := getSqliteDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", dbName))
	if err != nil {
		t.Fatalf("fail to create temp DB with name %s: %s", dbName, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("cannot get the SQL DB of %s: %s", dbName, err)
	}
	// A shared-cache in-memory db lives as long as one connection to it is open. A single
	// connection also keeps sqlite from reporting "table is locked" on concurrent readers.
	sqlDB.SetMaxOpenConns(1)

	if err := DatabaseSetupAndMigration(db); err != nil {
		t.Fatalf("fail to migrate temp DB %s: %s", dbName, err)
	}
	t.Cleanup(func() {
		dropTempDB(db, dbName)
	})

	return db, dbName
}

// dropTempDB releases a temp db created by CreateTempDB. Closing the last connection of an
// in-memory database drops it.
func dropTempDB(curDB *gorm.DB, dbName string) {
	if !isTempDB(dbName) {
		panic("cannot delete a non-testing DB")
	}
	sqlDB, err := curDB.DB()
	if err != nil {
		return
	}
	sqlDB.Close()
}

func DatabaseSetupAndMigration(db *gorm.DB) error {
	return db.AutoMigrate(&model.User{}, &model.Post{}, &model.Comment{})
}
