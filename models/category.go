package models

import (
	"errors"
	"strings"
	"time"

	"github.com/roelfsche/jelly-mptt/mptt"
	"gorm.io/gorm"
)

var ErrEmptyName = errors.New("category name must not be empty")

// Category is a node in a category hierarchy. Each scope is one hierarchy.
type Category struct {
	mptt.Nested
	Name        string `gorm:"not null"`
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (c *Category) BeforeSave(tx *gorm.DB) error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

// Label is used when listing and printing hierarchies.
func (c *Category) Label() string {
	return c.Name
}

type CategoryTree = mptt.Tree[Category, *Category]

func NewCategoryTree(db *gorm.DB, opts *mptt.Options) (*CategoryTree, error) {
	return mptt.NewTree[Category](db, opts)
}
