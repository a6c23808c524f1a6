package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/lacuina/content-service/internal/siteconfig"
	"github.com/lacuina/content-service/pkg/logger"
)

var errOverLimit = errors.New("over limit")

var urlValidator = validator.New()

// validImageURL accepts absolute http(s) URLs and site-relative paths.
func validImageURL(s string) bool {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "/") && !strings.HasPrefix(s, "//") {
		return true
	}
	return urlValidator.Var(s, "required,http_url") == nil
}

// ConfigHandler exposes the merged site document.
type ConfigHandler struct {
	sync *siteconfig.Synchronizer
}

func NewConfigHandler(s *siteconfig.Synchronizer) *ConfigHandler {
	return &ConfigHandler{sync: s}
}

func (h *ConfigHandler) RegisterPublic(rg *gin.RouterGroup) {
	rg.GET("/config", h.Get)
	rg.GET("/config/stream", h.Stream)
}

func (h *ConfigHandler) RegisterAdmin(rg *gin.RouterGroup) {
	rg.PATCH("/config", h.Patch)
}

func (h *ConfigHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.sync.Get())
}

func (h *ConfigHandler) Stream(c *gin.Context) {
	doc := h.sync.Get()
	stream(c, "config", &doc, func(fn func(siteconfig.Document)) (func(), error) {
		return h.sync.Subscribe(fn), nil
	})
}

// Patch saves the given sections. Each one replaces the stored section,
// rebuilt over its defaults.
func (h *ConfigHandler) Patch(c *gin.Context) {
	var patch siteconfig.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	patch, err := sanitizePatch(patch, h.sync.Get())
	switch {
	case errors.Is(err, errOverLimit):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err = h.sync.Update(c.Request.Context(), patch)
	switch {
	case errors.Is(err, siteconfig.ErrUnknownSection), errors.Is(err, siteconfig.ErrInvalidSection):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, siteconfig.ErrWriteFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": "No s'han pogut desar els canvis. Torna-ho a provar."})
		return
	case err != nil:
		logger.Errorf("config patch: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, h.sync.Get())
}

// sanitizePatch drops unusable hero images and enforces the admin limits,
// taking them from the patch itself when it carries an admin section.
func sanitizePatch(patch siteconfig.Patch, current siteconfig.Document) (siteconfig.Patch, error) {
	limits := current.Admin
	if raw, ok := patch["admin"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &limits); err != nil {
			return nil, fmt.Errorf("admin: %w", err)
		}
	}

	if raw, ok := patch["hero"]; ok && !isNull(raw) {
		var hero map[string]json.RawMessage
		if err := json.Unmarshal(raw, &hero); err != nil {
			return nil, fmt.Errorf("hero: %w", err)
		}
		if ft, ok := hero["formType"]; ok && !isNull(ft) {
			var f siteconfig.FormType
			if err := json.Unmarshal(ft, &f); err != nil || !f.Valid() {
				return nil, fmt.Errorf("hero.formType: unsupported value %s", ft)
			}
		}
		if imgs, ok := hero["backgroundImages"]; ok && !isNull(imgs) {
			var list []interface{}
			if err := json.Unmarshal(imgs, &list); err != nil {
				return nil, fmt.Errorf("hero.backgroundImages: %w", err)
			}
			kept := make([]string, 0, len(list))
			for _, v := range list {
				if s, ok := v.(string); ok && validImageURL(s) {
					kept = append(kept, strings.TrimSpace(s))
				}
			}
			if limits.MaxHeroImages > 0 && len(kept) > limits.MaxHeroImages {
				return nil, fmt.Errorf("%w: at most %d hero images", errOverLimit, limits.MaxHeroImages)
			}
			hero["backgroundImages"], _ = json.Marshal(kept)
			patch["hero"], _ = json.Marshal(hero)
		}
	}

	if raw, ok := patch["extraMenus"]; ok && !isNull(raw) {
		var menus siteconfig.ExtraMenusField
		if err := json.Unmarshal(raw, &menus); err != nil {
			return nil, fmt.Errorf("extraMenus: %w", err)
		}
		if limits.MaxExtraMenus > 0 && len(menus.Entries) > limits.MaxExtraMenus {
			return nil, fmt.Errorf("%w: at most %d extra menus", errOverLimit, limits.MaxExtraMenus)
		}
	}
	return patch, nil
}

func isNull(raw json.RawMessage) bool {
	return len(strings.TrimSpace(string(raw))) == 0 || strings.TrimSpace(string(raw)) == "null"
}
