package exts

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
)

var validation = validator.New(validator.WithRequiredStructEnabled())

func init() {
	validation.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func ValidateSchema(data any) error {
	err := validation.Struct(data)
	if err == nil {
		return nil
	}

	var fields validator.ValidationErrors
	if errors.As(err, &fields) {
		names := lo.Map(fields, func(item validator.FieldError, _ int) string {
			return item.Field()
		})
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("%s required", strings.Join(names, ", ")))
	}
	return fiber.NewError(fiber.StatusBadRequest, err.Error())
}

func BindAndValidate(c *fiber.Ctx, out any) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(out); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}
	return ValidateSchema(out)
}

// ErrorHandler renders every error as {"error": message}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
