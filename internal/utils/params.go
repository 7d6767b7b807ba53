package utils

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
)

func GetIDParam(ctx *gin.Context, name string) (uint, error) {
	raw := ctx.Param(name)

	if raw == "" {
		return 0, errors.New(name + " not found")
	}

	id, err := strconv.ParseUint(raw, 10, 32)

	if err != nil {
		return 0, errors.New("Invalid " + name)
	}

	return uint(id), nil
}

func ParseUintQuery(ctx *gin.Context, name string) (uint, error) {
	raw := ctx.Query(name)

	if raw == "" {
		return 0, errors.New(name + " is required")
	}

	value, err := strconv.ParseUint(raw, 10, 32)

	if err != nil {
		return 0, errors.New("Invalid " + name)
	}

	return uint(value), nil
}

func GetTeamID(ctx *gin.Context) (uint, error) {
	return GetIDParam(ctx, "team_id")
}

func GetProjectID(ctx *gin.Context) (uint, error) {
	return GetIDParam(ctx, "project_id")
}

func GetMilestoneID(ctx *gin.Context) (uint, error) {
	return GetIDParam(ctx, "milestone_id")
}
