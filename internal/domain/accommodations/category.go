package accommodations

import (
	"errors"
	"strings"
)

var ErrUnknownCategory = errors.New("accommodations: unknown category")

// Category is the business classification used to look up price rules.
type Category string

const (
	CategoryStandard  Category = "STANDARD"
	CategoryLuxo      Category = "LUXO"
	CategorySuperLuxo Category = "SUPER_LUXO"
	CategoryMaster    Category = "MASTER"
)

var categoryAliases = map[string]Category{
	"STANDARD":   CategoryStandard,
	"STD":        CategoryStandard,
	"LUXO":       CategoryLuxo,
	"SUPER_LUXO": CategorySuperLuxo,
	"SUPERLUXO":  CategorySuperLuxo,
	"MASTER":     CategoryMaster,
}

// Categories lists every known category in display order.
func Categories() []Category {
	return []Category{CategoryStandard, CategoryLuxo, CategorySuperLuxo, CategoryMaster}
}

// ParseCategory maps free-form input ("Super Luxo", "super-luxo") to a Category.
func ParseCategory(raw string) (Category, error) {
	key := strings.ToUpper(strings.TrimSpace(raw))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	if c, ok := categoryAliases[key]; ok {
		return c, nil
	}
	return "", ErrUnknownCategory
}

func (c Category) Valid() bool {
	switch c {
	case CategoryStandard, CategoryLuxo, CategorySuperLuxo, CategoryMaster:
		return true
	}
	return false
}

func (c Category) String() string {
	return string(c)
}
