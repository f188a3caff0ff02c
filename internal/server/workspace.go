package server

import (
	"net/http"

	"github.com/IkramBagban/proxlay-sub001/internal/auth"
	workspacedomain "github.com/IkramBagban/proxlay-sub001/internal/workspace/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func (s *Server) CreateWorkspace(c *gin.Context) {
	userID, _ := auth.UserID(c.Request.Context())

	var req workspacedomain.CreateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, workspacedomain.ErrValidation)
		return
	}

	workspace, err := s.workspaceSvc.CreateWorkspace(c.Request.Context(), userID, &req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": workspace})
}

func (s *Server) AddWorkspaceMember(c *gin.Context) {
	userID, _ := auth.UserID(c.Request.Context())

	workspaceID, err := parseWorkspaceID(c)
	if err != nil {
		AbortWithError(c, workspacedomain.ErrValidation)
		return
	}

	var req workspacedomain.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, workspacedomain.ErrValidation)
		return
	}

	member, err := s.workspaceSvc.AddMember(c.Request.Context(), userID, workspaceID, &req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": member})
}

func (s *Server) RecordVideoUpload(c *gin.Context) {
	userID, _ := auth.UserID(c.Request.Context())

	workspaceID, err := parseWorkspaceID(c)
	if err != nil {
		AbortWithError(c, workspacedomain.ErrValidation)
		return
	}

	var req workspacedomain.RecordUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, workspacedomain.ErrValidation)
		return
	}

	video, err := s.workspaceSvc.RecordUpload(c.Request.Context(), userID, workspaceID, &req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": video})
}

func parseWorkspaceID(c *gin.Context) (snowflake.ID, error) {
	return snowflake.ParseString(c.Param("id"))
}
