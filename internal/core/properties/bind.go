package properties

import "github.com/zeusync/smoke/internal/core/geom"

// Handlers that store a property straight into a field. The field keeps its
// old value when the property has the wrong kind.

func bind[T any](dst *T, as func(Property) (T, error)) Handler {
	return func(p Property) error {
		v, err := as(p)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

func BindBool(dst *bool) Handler { return bind(dst, Property.AsBool) }

func BindInt(dst *int) Handler { return bind(dst, Property.AsInt) }

func BindFloat(dst *float64) Handler { return bind(dst, Property.AsFloat) }

func BindString(dst *string) Handler { return bind(dst, Property.AsString) }

func BindVector3(dst *geom.Vector3) Handler { return bind(dst, Property.AsVector3) }

func BindQuaternion(dst *geom.Quaternion) Handler { return bind(dst, Property.AsQuaternion) }
