package relational

import (
	"fmt"
	"math/big"

	"github.com/chainspool/indexer/model"
	"github.com/chainspool/indexer/schema"
)

// RowToEntity converts one scanned database row (as sqlx's MapScan
// produces it) back into an Entity, inverting valueArg per column type.
func RowToEntity(t schema.Table, row map[string]interface{}) (model.Entity, error) {
	attrs := map[string]model.Value{}
	for _, c := range t.Columns {
		raw, ok := row[c.Name]
		if !ok || raw == nil {
			attrs[c.Name] = model.Null
			continue
		}
		v, err := columnValue(c, raw)
		if err != nil {
			return model.Entity{}, fmt.Errorf("relational: column %q: %w", c.Name, err)
		}
		attrs[c.Name] = v
	}
	return model.NewEntity(attrs), nil
}

func columnValue(c schema.Column, raw interface{}) (model.Value, error) {
	switch c.Type {
	case schema.ColBoolean:
		b, ok := raw.(bool)
		if !ok {
			return model.Value{}, fmt.Errorf("expected bool, got %T", raw)
		}
		return model.NewBool(b), nil
	case schema.ColInt:
		switch n := raw.(type) {
		case int64:
			return model.NewInt(int32(n)), nil
		case int32:
			return model.NewInt(n), nil
		default:
			return model.Value{}, fmt.Errorf("expected integer, got %T", raw)
		}
	case schema.ColString, schema.ColEnum:
		s, err := asString(raw)
		if err != nil {
			return model.Value{}, err
		}
		return model.NewString(s), nil
	case schema.ColBytes, schema.ColBytesID:
		b, ok := raw.([]byte)
		if !ok {
			s, err := asString(raw)
			if err != nil {
				return model.Value{}, fmt.Errorf("expected bytes, got %T", raw)
			}
			b = []byte(s)
		}
		return model.NewBytes(b), nil
	case schema.ColBigInt:
		s, err := asString(raw)
		if err != nil {
			return model.Value{}, err
		}
		bi, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return model.Value{}, fmt.Errorf("invalid BigInt encoding %q", s)
		}
		return model.NewBigInt(bi), nil
	case schema.ColBigDecimal:
		s, err := asString(raw)
		if err != nil {
			return model.Value{}, err
		}
		d, err := model.ParseBigDecimal(s)
		if err != nil {
			return model.Value{}, err
		}
		return model.NewBigDecimal(d), nil
	default:
		return model.Value{}, fmt.Errorf("unhandled column type %v", c.Type)
	}
}

func asString(raw interface{}) (string, error) {
	switch s := raw.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	default:
		return "", fmt.Errorf("expected string, got %T", raw)
	}
}
