// Package httpadmin mounts the operator endpoints: command listing, manifest
// reload and the redacted configuration.
package httpadmin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekodylan/OVL-MD/internal/registry"
)

// Reloader re-reads the command manifest directory and reports how many commands
// were added.
type Reloader interface {
	ReloadCommands() (added int, err error)
}

type Server struct {
	reg    *registry.Registry
	rel    Reloader
	config func() map[string]any
}

// New builds the admin routes. config may be nil, in which case /admin/config is
// not mounted.
func New(reg *registry.Registry, rel Reloader, config func() map[string]any) *Server {
	return &Server{reg: reg, rel: rel, config: config}
}

type commandView struct {
	Name        string   `json:"name"`
	Aliases     []string `json:"aliases,omitempty"`
	Category    string   `json:"category"`
	Description string   `json:"description,omitempty"`
	React       string   `json:"react,omitempty"`
	Premium     bool     `json:"premium"`
	Source      string   `json:"source,omitempty"`
}

func (s *Server) Register(r gin.IRouter) {
	admin := r.Group("/admin")
	admin.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	admin.GET("/commands", s.handleCommands)
	admin.POST("/commands/reload", s.handleReload)
	if s.config != nil {
		admin.GET("/config", func(c *gin.Context) {
			c.JSON(http.StatusOK, s.config())
		})
	}
}

func (s *Server) handleCommands(c *gin.Context) {
	f, err := ParseFilters(c.Request.URL.Query())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	all := s.reg.List()
	out := make([]commandView, 0, len(all))
	for _, d := range all {
		if !f.Matches(d) {
			continue
		}
		out = append(out, commandView{
			Name:        d.Name,
			Aliases:     d.Aliases,
			Category:    registry.CategoryOf(d),
			Description: d.Description,
			React:       d.React,
			Premium:     d.PremiumOnly,
			Source:      d.Source,
		})
		if len(out) >= f.Limit {
			break
		}
	}
	c.JSON(http.StatusOK, gin.H{"total": s.reg.Len(), "commands": out})
}

func (s *Server) handleReload(c *gin.Context) {
	added, err := s.rel.ReloadCommands()
	if err != nil {
		c.String(http.StatusInternalServerError, "reload failed: %s\n", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "reloaded": true, "added": added, "total": s.reg.Len()})
}
