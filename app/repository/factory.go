package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Repositories bundles all repository instances.
type Repositories struct {
	User UserRepository
	Post PostRepository
}

// NewRepositories creates all repositories from one DB handle.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User: NewUserRepository(db),
		Post: NewPostRepository(db),
	}
}

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{db: db}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// GetUserRepository returns the user repository instance
func (f *Factory) GetUserRepository() UserRepository {
	return f.GetRepositories().User
}

// GetPostRepository returns the post repository instance
func (f *Factory) GetPostRepository() PostRepository {
	return f.GetRepositories().Post
}

var (
	globalFactory *Factory
	globalOnce    sync.Once
)

// InitGlobalFactory sets up the process-wide repository factory.
func InitGlobalFactory(db *gorm.DB) {
	globalOnce.Do(func() {
		globalFactory = NewFactory(db)
	})
}

// GetGlobalFactory returns the process-wide repository factory.
func GetGlobalFactory() *Factory {
	return globalFactory
}
