package database

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database wraps a GORM database instance and provides high-level operations
// for connection manager data. It encapsulates all database interactions for
// profiles, interface states, and users. Every mutating method commits its
// own transaction before returning, so callers get write-through semantics.
type Database struct {
	*gorm.DB
}

// New creates a new Database instance and establishes a connection to SQLite.
// It automatically runs database migrations for all defined models.
// The dbPath parameter specifies the path to the SQLite database file.
// Returns a Database instance or an error if connection or migration fails.
func New(dbPath string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&ConnectionProfile{}, &InterfaceState{}, &User{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Database{DB: db}, nil
}

// CreateProfile inserts a new connection profile record into the database.
// Returns an error if the insert fails, including unique constraint
// violations on the profile name.
func (db *Database) CreateProfile(profile *ConnectionProfile) error {
	return db.Create(profile).Error
}

// GetProfile retrieves a connection profile by its unique name.
// Returns gorm.ErrRecordNotFound if no profile with that name exists.
func (db *Database) GetProfile(name string) (*ConnectionProfile, error) {
	var profile ConnectionProfile
	err := db.Where("name = ?", name).First(&profile).Error
	return &profile, err
}

// ListProfiles retrieves connection profiles, optionally filtered to one
// interface. Results are ordered by priority descending, then by name
// ascending so listing order is deterministic.
func (db *Database) ListProfiles(iface string) ([]ConnectionProfile, error) {
	var profiles []ConnectionProfile
	query := db.Order("priority desc, name asc")
	if iface != "" {
		query = query.Where("interface = ?", iface)
	}
	err := query.Find(&profiles).Error
	return profiles, err
}

// SaveProfile updates an existing connection profile record.
// The profile's name identifies the record to update.
func (db *Database) SaveProfile(profile *ConnectionProfile) error {
	return db.Save(profile).Error
}

// DeleteProfile removes a connection profile by name.
// Returns the number of rows removed so callers can distinguish a deletion
// from a miss, and an error if the delete fails.
func (db *Database) DeleteProfile(name string) (int64, error) {
	result := db.Where("name = ?", name).Delete(&ConnectionProfile{})
	return result.RowsAffected, result.Error
}

// GetInterfaceState retrieves the state record for one interface.
// Returns gorm.ErrRecordNotFound if the interface has never been recorded.
func (db *Database) GetInterfaceState(iface string) (*InterfaceState, error) {
	var state InterfaceState
	err := db.Where("interface = ?", iface).First(&state).Error
	return &state, err
}

// SaveInterfaceState inserts or updates an interface state record.
// The state's interface name identifies the record.
func (db *Database) SaveInterfaceState(state *InterfaceState) error {
	return db.Save(state).Error
}

// ListInterfaceStates retrieves all interface state records ordered by
// interface name.
func (db *Database) ListInterfaceStates() ([]InterfaceState, error) {
	var states []InterfaceState
	err := db.Order("interface asc").Find(&states).Error
	return states, err
}

// CreateUser inserts a new user record into the database.
// Returns an error if the creation fails due to validation or constraints.
func (db *Database) CreateUser(user *User) error {
	return db.Create(user).Error
}

// GetUserByUsername retrieves a user by their username.
// This is used for authentication during login.
func (db *Database) GetUserByUsername(username string) (*User, error) {
	var user User
	err := db.Where("username = ?", username).First(&user).Error
	return &user, err
}

// CountUsers returns the number of user records. Used at startup to decide
// whether the initial admin account needs to be created.
func (db *Database) CountUsers() (int64, error) {
	var count int64
	err := db.Model(&User{}).Count(&count).Error
	return count, err
}

// UpdateUserLastLogin updates the last login timestamp for a user.
// This is called after successful authentication.
func (db *Database) UpdateUserLastLogin(userID uint) error {
	now := time.Now()
	return db.Model(&User{}).Where("id = ?", userID).Update("last_login", &now).Error
}
