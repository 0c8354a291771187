package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(New(KindNotFound, "missing")))
	assert.Equal(t, KindConflict, KindOf(Newf(KindConflict, "dup %d", 7)))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestKindSurvivesWrapping(t *testing.T) {
	inner := New(KindValidation, "bad input")
	outer := fmt.Errorf("handling request: %w", inner)

	assert.Equal(t, KindValidation, KindOf(outer))
	assert.True(t, IsValidation(outer))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(KindGateway, "gateway call failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "gateway call failed")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(New(KindNotFound, "x")))
	assert.Equal(t, http.StatusConflict, HTTPStatus(New(KindConflict, "x")))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(New(KindValidation, "x")))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(New(KindGateway, "x")))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(New(KindDelivery, "x")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("plain")))
}
