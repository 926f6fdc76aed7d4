package service

import (
	"github.com/noah-isme/activity-credit-api/internal/category"
)

// CategoryService exposes the detail schema registry.
type CategoryService interface {
	List() []category.Schema
	Get(key string) (category.Schema, error)
	EmptyDetail(key string) (map[string]interface{}, error)
}

type categoryService struct {
	registry *category.Registry
}

// NewCategoryService wraps a registry.
func NewCategoryService(registry *category.Registry) CategoryService {
	return &categoryService{registry: registry}
}

func (s *categoryService) List() []category.Schema {
	return s.registry.List()
}

func (s *categoryService) Get(key string) (category.Schema, error) {
	return s.registry.Lookup(key)
}

func (s *categoryService) EmptyDetail(key string) (map[string]interface{}, error) {
	return s.registry.EmptyDetail(key)
}
