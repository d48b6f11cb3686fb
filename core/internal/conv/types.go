package conv

import (
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Builtin type names
const (
	TypeString    = "string"
	TypeInt       = "int"
	TypeLong      = "long"
	TypeDouble    = "double"
	TypeDecimal   = "decimal"
	TypeBool      = "bool"
	TypeDate      = "date"
	TypeTimestamp = "timestamp"
	TypeObjectID  = "objectid"
	TypeBinary    = "binary"
	TypeUUID      = "uuid"
	TypeObject    = "object"
	TypeArray     = "array"
	TypeAny       = "any"
)

var builtinTypes = map[string]Type{
	TypeString: TypeFuncs{
		To: func(v any) (any, error) { return cast.ToStringE(v) },
	},
	TypeInt: TypeFuncs{
		To:   toInt32,
		From: func(v any) (any, error) { return cast.ToIntE(v) },
	},
	TypeLong: TypeFuncs{
		To: func(v any) (any, error) { return cast.ToInt64E(v) },
	},
	TypeDouble: TypeFuncs{
		To: func(v any) (any, error) { return cast.ToFloat64E(v) },
	},
	TypeBool: TypeFuncs{
		To: func(v any) (any, error) { return cast.ToBoolE(v) },
	},
	TypeDecimal: TypeFuncs{
		To:   toDecimal,
		From: func(v any) (any, error) { return cast.ToStringE(v) },
	},
	TypeDate: TypeFuncs{
		To:   toDate,
		From: fromDate,
	},
	TypeTimestamp: TypeFuncs{
		To:   toTimestamp,
		From: fromTimestamp,
	},
	TypeObjectID: TypeFuncs{
		To:   toObjectID,
		From: fromObjectID,
	},
	TypeBinary: TypeFuncs{
		To:   toBinary,
		From: fromBinary,
	},
	TypeUUID: TypeFuncs{
		To:   toUUID,
		From: fromUUID,
	},
	TypeObject: TypeFuncs{},
	TypeAny:    TypeFuncs{},
}

func toDecimal(v any) (any, error) {
	if d, ok := v.(bson.Decimal128); ok {
		return d, nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return nil, err
	}
	return bson.ParseDecimal128(s)
}

func toDate(v any) (any, error) {
	switch t := v.(type) {
	case bson.DateTime:
		return t, nil
	case *time.Time:
		if t == nil {
			return nil, nil
		}
		return bson.NewDateTimeFromTime(*t), nil
	}
	t, err := cast.ToTimeE(v)
	if err != nil {
		return nil, err
	}
	return bson.NewDateTimeFromTime(t), nil
}

func fromDate(v any) (any, error) {
	switch t := v.(type) {
	case bson.DateTime:
		return t.Time().UTC(), nil
	case time.Time:
		return t, nil
	}
	return cast.ToTimeE(v)
}

func toTimestamp(v any) (any, error) {
	if ts, ok := v.(bson.Timestamp); ok {
		return ts, nil
	}
	t, err := cast.ToTimeE(v)
	if err != nil {
		return nil, err
	}
	return bson.Timestamp{T: uint32(t.Unix())}, nil
}

func fromTimestamp(v any) (any, error) {
	if ts, ok := v.(bson.Timestamp); ok {
		return time.Unix(int64(ts.T), 0).UTC(), nil
	}
	return v, nil
}

func toObjectID(v any) (any, error) {
	switch id := v.(type) {
	case bson.ObjectID:
		return id, nil
	case string:
		return bson.ObjectIDFromHex(id)
	}
	return nil, fmt.Errorf("expected an object id or hex string")
}

func fromObjectID(v any) (any, error) {
	if id, ok := v.(bson.ObjectID); ok {
		return id.Hex(), nil
	}
	return v, nil
}

func toInt32(v any) (any, error) {
	n, err := cast.ToInt64E(v)
	if err != nil {
		return nil, err
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return nil, fmt.Errorf("%d is out of the int32 range", n)
	}
	return int32(n), nil
}

func toBinary(v any) (any, error) {
	switch b := v.(type) {
	case bson.Binary:
		return b, nil
	case []byte:
		return bson.Binary{Data: b}, nil
	case string:
		return bson.Binary{Data: []byte(b)}, nil
	}
	return nil, fmt.Errorf("expected bytes")
}

func fromBinary(v any) (any, error) {
	if b, ok := v.(bson.Binary); ok {
		return b.Data, nil
	}
	return v, nil
}

func toUUID(v any) (any, error) {
	switch u := v.(type) {
	case bson.Binary:
		return u, nil
	case uuid.UUID:
		return bson.Binary{Subtype: bson.TypeBinaryUUID, Data: u[:]}, nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return nil, err
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return bson.Binary{Subtype: bson.TypeBinaryUUID, Data: u[:]}, nil
}

func fromUUID(v any) (any, error) {
	b, ok := v.(bson.Binary)
	if !ok {
		return v, nil
	}
	u, err := uuid.FromBytes(b.Data)
	if err != nil {
		return nil, err
	}
	return u.String(), nil
}

// toArray converts every element of a list using its inferred type.
func (r *Registry) toArray(v any) (any, error) {
	if !isList(v) {
		return nil, fmt.Errorf("expected a list")
	}
	rv := reflect.ValueOf(v)
	out := make(bson.A, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		ev := rv.Index(i).Interface()
		if ev == nil {
			continue
		}
		nv, err := r.ToNative(Infer(ev), ev)
		if err != nil {
			return nil, err
		}
		out[i] = nv
	}
	return out, nil
}
