package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/seekwell/seekwell-backend/internal/http/response"
	"github.com/seekwell/seekwell-backend/internal/services"
)

type ModelsHandler struct {
	catalog services.ModelCatalog
}

func NewModelsHandler(catalog services.ModelCatalog) *ModelsHandler {
	return &ModelsHandler{catalog: catalog}
}

func (h *ModelsHandler) List(c *gin.Context) {
	response.OK(c, gin.H{"models": h.catalog.List()})
}
