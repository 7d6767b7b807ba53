package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/milepost-dev/milepost/db"
	"github.com/milepost-dev/milepost/internal/models"
	"github.com/milepost-dev/milepost/internal/permissions"
	"github.com/milepost-dev/milepost/internal/types"
	"github.com/milepost-dev/milepost/internal/utils"
	"gorm.io/gorm"
)

type CreateTeamRequest struct {
	Name string `json:"name" binding:"required"`
}

type UpdateTeamRequest struct {
	Name         string `json:"name"`
	ProfileImage string `json:"profile_image"`
}

func teamResponse(team *models.Team) types.TeamResponse {
	return types.TeamResponse{
		ID:           team.ID,
		Slug:         team.Slug,
		Name:         team.Name,
		Type:         team.Type,
		ProfileImage: team.ProfileImage,
	}
}

func CreateTeam(ctx *gin.Context) {
	var req CreateTeamRequest

	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	team, err := membershipService().CreateTeam(req.Name, types.TeamTypeTeam, userID)

	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, teamResponse(team))
}

func ListTeams(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var teams []models.Team

	err = db.DB.
		Joins("JOIN team_memberships ON team_memberships.team_id = teams.id").
		Where("team_memberships.user_id = ? AND team_memberships.deleted_at IS NULL", userID).
		Find(&teams).Error

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve teams"})
		return
	}

	response := make([]types.TeamResponse, 0, len(teams))

	for i := range teams {
		response = append(response, teamResponse(&teams[i]))
	}

	ctx.JSON(http.StatusOK, response)
}

func GetTeam(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	teamID, err := utils.GetTeamID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var team models.Team

	if err := db.DB.First(&team, teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Team not found"})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve team"})
		}
		return
	}

	role, err := membershipService().TeamRole(teamID, userID)

	if err != nil {
		respondError(ctx, err)
		return
	}

	if !permissions.Can(role, permissions.ActionRead, permissions.ResourceTeam) {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "Insufficient role to view team"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"team": teamResponse(&team),
		"role": role,
	})
}

func UpdateTeam(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	teamID, err := utils.GetTeamID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req UpdateTeamRequest

	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	var team models.Team

	if err := db.DB.First(&team, teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Team not found"})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve team"})
		}
		return
	}

	role, err := membershipService().TeamRole(teamID, userID)

	if err != nil {
		respondError(ctx, err)
		return
	}

	if !permissions.Can(role, permissions.ActionManage, permissions.ResourceTeam) {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "Insufficient role to update team"})
		return
	}

	updates := make(map[string]interface{})

	if req.Name != "" {
		updates["name"] = req.Name
	}

	if req.ProfileImage != "" {
		updates["profile_image"] = req.ProfileImage
	}

	if len(updates) == 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "No valid fields to update"})
		return
	}

	if err := db.DB.Model(&team).Updates(updates).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update team"})
		return
	}

	ctx.JSON(http.StatusOK, teamResponse(&team))
}

func DeleteTeam(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	teamID, err := utils.GetTeamID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var team models.Team

	if err := db.DB.First(&team, teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Team not found"})
		} else {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve team"})
		}
		return
	}

	role, err := membershipService().TeamRole(teamID, userID)

	if err != nil {
		respondError(ctx, err)
		return
	}

	if !permissions.Can(role, permissions.ActionDelete, permissions.ResourceTeam) {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "Insufficient role to delete team"})
		return
	}

	if err := db.DB.Delete(&team).Error; err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete team"})
		return
	}

	ctx.Status(http.StatusNoContent)
}
