package rest

import (
	"encoding/json"
	stderrors "errors"
	"log"
	"math"
	"net/http"
	"strconv"

	"github.com/dapursambal/storefront/pkg/auth"
	"github.com/dapursambal/storefront/pkg/constants"
	"github.com/dapursambal/storefront/pkg/errors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// GetAdminFromContext extracts the authenticated admin set by RequireAuth
func GetAdminFromContext(c *gin.Context) *auth.AdminSession {
	v, exists := c.Get(constants.ContextKeyAdmin)
	if !exists {
		return nil
	}
	admin, ok := v.(auth.AdminSession)
	if !ok {
		return nil
	}
	return &admin
}

// RespondAppError sends a standardised JSON error response using pkg/errors
func RespondAppError(c *gin.Context, err error) {
	code := errors.GetHTTPStatus(err)
	errorCode := errors.GetErrorCode(err)
	message := err.Error()

	if code >= 500 {
		log.Printf("❌ ERROR [%d] %s %s: %s", code, c.Request.Method, c.Request.URL.Path, message)
		// Internal details stay in the log
		message = "Something went wrong on our side. Please try again."
	}

	var limited *errors.RateLimitedError
	if stderrors.As(err, &limited) {
		c.Header("Retry-After", strconv.Itoa(int(math.Max(1, math.Ceil(limited.RetryAfter.Seconds())))))
	}

	body := gin.H{
		constants.ResponseError: message,
		constants.FieldMessage:  message,
		"code":                  errorCode,
		"data":                  nil,
	}
	var invalid *errors.ValidationError
	if stderrors.As(err, &invalid) && invalid.Field != "" {
		body["field"] = invalid.Field
	}
	c.JSON(code, body)
}

// BindJSON binds JSON and returns true if successful. If failed, it sends bad request error.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		RespondAppError(c, errors.NewValidationError("body", err.Error()))
		return false
	}
	return true
}

// BindJSONStrict binds JSON and rejects unknown fields.
func BindJSONStrict(c *gin.Context, obj interface{}) bool {
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(obj); err != nil {
		RespondAppError(c, errors.NewValidationError("body", err.Error()))
		return false
	}
	if err := binding.Validator.ValidateStruct(obj); err != nil {
		RespondAppError(c, errors.NewValidationError("body", err.Error()))
		return false
	}
	return true
}

// HandleGetEnvelope executes a read action and returns the result wrapped in a JSON key
// Response: { [key]: result }
func HandleGetEnvelope(c *gin.Context, key string, action func() (interface{}, error)) {
	result, err := action()
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{key: result})
}

// HandleCreateEnvelope binds the request into in, runs the create action and
// returns what it produced.
// Response: { message: successMsg, [key]: created }
func HandleCreateEnvelope(c *gin.Context, key, successMsg string, in interface{}, action func() (interface{}, error)) {
	if !BindJSON(c, in) {
		return
	}
	created, err := action()
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{constants.FieldMessage: successMsg, key: created})
}

// HandleUpdateEnvelope binds the request into in, runs the update action and
// returns the updated record.
// Response: { message: successMsg, [key]: updated }
func HandleUpdateEnvelope(c *gin.Context, key, successMsg string, in interface{}, action func() (interface{}, error)) {
	if !BindJSON(c, in) {
		return
	}
	updated, err := action()
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{constants.FieldMessage: successMsg, key: updated})
}

// HandleDeleteEnvelope executes a delete action and returns a success message
// Response: { message: successMsg }
func HandleDeleteEnvelope(c *gin.Context, successMsg string, action func() error) {
	if err := action(); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{constants.FieldMessage: successMsg})
}

// queryInt reads an integer query parameter, falling back on absence.
// A malformed value is a validation error.
func queryInt(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.NewValidationError(name, "must be a whole number")
	}
	return v, nil
}
