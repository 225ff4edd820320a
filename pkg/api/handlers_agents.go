package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// listAgents handles GET /api/v1/agents
func (s *Server) listAgents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"agents": s.agents.Describe()})
}

// listProviders handles GET /api/v1/providers — per-provider call health
// plus which one agents fall back to when a job doesn't pin one.
func (s *Server) listProviders(c *gin.Context) {
	if s.providers == nil {
		c.JSON(http.StatusOK, gin.H{"providers": map[string]interface{}{}, "names": []string{}})
		return
	}

	var defaultName string
	if p, err := s.providers.Default(); err == nil {
		defaultName = p.Name()
	}

	c.JSON(http.StatusOK, gin.H{
		"names":   s.providers.Names(),
		"default": defaultName,
		"health":  s.providers.Health(),
	})
}
