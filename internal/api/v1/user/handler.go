package user

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"promptbank-backend/internal/database"
	"promptbank-backend/internal/models"
	"promptbank-backend/internal/utils"
)

// CurrentUser godoc
// @Summary Get current user
// @Description Get current user's information
// @Tags user
// @Produce  json
// @Security Bearer
// @Success 200 {object} utils.Response{data=user.UserResponse}
// @Failure 401 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /auth/user [get]
func CurrentUser(c *gin.Context) {
	user, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusUnauthorized, utils.NewErrorResponse(http.StatusUnauthorized, "Unauthorized"))
		return
	}

	u := user.(models.User)

	// Reload from the DB so the response reflects the latest record rather
	// than the middleware's cached copy.
	var latestUser models.User
	if err := database.DB.First(&latestUser, u.ID).Error; err == nil {
		u = latestUser
	}

	token, err := utils.GenerateToken(u.ID, u.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Could not generate token"))
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("User information retrieved successfully", UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		MailAddress: u.MailAddress(),
		Role:        u.Role,
		Token:       token,
	}))
}
