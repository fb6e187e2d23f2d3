package binder

import (
	"github.com/Spaceecs/book-reader-client-sub000/pkg/models"
	"github.com/go-playground/validator/v10"
)

// bookRefValidator accepts the string forms of models.BookRef, e.g.
// "local:<uuid>" or "online:42". Use it with required when the ref can't be
// empty.
func bookRefValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	_, err := models.ParseBookRef(value)
	return err == nil
}

// bookFormatValidator accepts the book formats the reader can open, or the
// empty string.
func bookFormatValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return value == "" || models.IsSupportedFormat(value)
}
