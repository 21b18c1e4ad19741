package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pricewatch/internal/submission"
)

const (
	msgTracked     = "Product is now being tracked successfully!"
	msgMissingData = "Missing required data."
	msgAddFailed   = "Failed to add product."
)

type trackRequest struct {
	ProductURL  string          `json:"product_url"`
	TargetPrice json.RawMessage `json:"target_price"`
	UserEmail   string          `json:"user_email"`
}

// targetText accepts the target price as a JSON number or a numeric string.
func (r trackRequest) targetText() string {
	raw := bytes.TrimSpace(r.TargetPrice)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}
	return string(raw)
}

func (s *Server) track(c *gin.Context) {
	var req trackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingData})
		return
	}

	target := req.targetText()
	if strings.TrimSpace(req.ProductURL) == "" || strings.TrimSpace(target) == "" || strings.TrimSpace(req.UserEmail) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingData})
		return
	}

	item, err := s.submitter.Submit(c.Request.Context(), req.ProductURL, target, req.UserEmail)
	if err != nil {
		var verr *submission.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgAddFailed})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": msgTracked, "id": item.ID})
}
