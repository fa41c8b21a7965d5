package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/alexanderjulianmartinez/load-watch/internal/apperr"
)

func validateStruct(value any) error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		// Use YAML key names in error messages
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	err := validate.Struct(value)
	if err == nil {
		return nil
	}

	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperr.Wrap(apperr.KindConfig, err, "invalid config")
	}

	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		path := strings.TrimPrefix(e.Namespace(), "Config.")
		msgs = append(msgs, fmt.Sprintf(`key="%s", value="%v", failed "%s" validation`, path, e.Value(), e.ActualTag()))
	}
	return apperr.New(apperr.KindConfig, "invalid config: "+strings.Join(msgs, "; "))
}
