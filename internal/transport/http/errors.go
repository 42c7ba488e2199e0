package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"vetcare/backend/internal/domain"
	"vetcare/backend/internal/service/scheduling"
	"vetcare/backend/internal/store"
)

const (
	msgSlotTaken   = "This time was just taken, please choose another."
	msgUnavailable = "Please try again shortly."
)

type errorBody struct {
	Error           string `json:"error"`
	Message         string `json:"message"`
	CurrentStatus   string `json:"current_status,omitempty"`
	RequestedStatus string `json:"requested_status,omitempty"`
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status, body := errorResponse(err)
	c.AbortWithStatusJSON(status, body)
}

func errorResponse(err error) (int, errorBody) {
	kind := scheduling.KindOf(err)
	switch kind {
	case scheduling.KindInvalidInput:
		return http.StatusBadRequest, errorBody{Error: string(kind), Message: err.Error()}
	case scheduling.KindNotFound:
		return http.StatusNotFound, errorBody{Error: string(kind), Message: err.Error()}
	case scheduling.KindConflict:
		msg := err.Error()
		if errors.Is(err, store.ErrConflict) {
			msg = msgSlotTaken
		}
		return http.StatusConflict, errorBody{Error: string(kind), Message: msg}
	case scheduling.KindInvalidTransition:
		body := errorBody{Error: string(kind), Message: err.Error()}
		var tErr *domain.InvalidTransitionError
		if errors.As(err, &tErr) {
			body.CurrentStatus = string(tErr.From)
			body.RequestedStatus = string(tErr.To)
		}
		return http.StatusConflict, body
	case scheduling.KindStorageUnavailable:
		return http.StatusServiceUnavailable, errorBody{Error: string(kind), Message: msgUnavailable}
	}
	return http.StatusInternalServerError, errorBody{Error: "internal", Message: "Something went wrong."}
}

// bindError turns a gin binding failure into a 400 naming the offending
// fields.
func (h *Handler) bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		parts := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			parts = append(parts, fieldMessage(fe))
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{
			Error:   string(scheduling.KindInvalidInput),
			Message: strings.Join(parts, "; "),
		})
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{
		Error:   string(scheduling.KindInvalidInput),
		Message: "malformed request: " + err.Error(),
	})
}

func fieldMessage(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "uuid":
		return name + " must be a UUID"
	case "hhmm":
		return name + " must be a time of day as HH:MM"
	case "isodate":
		return name + " must be a date as YYYY-MM-DD"
	case "gt", "gte", "lt", "lte", "min", "max":
		return fmt.Sprintf("%s must be %s %s", name, fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", name, fe.Tag())
}

func invalidParam(c *gin.Context, name string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{
		Error:   string(scheduling.KindInvalidInput),
		Message: name + " must be a UUID",
	})
}
