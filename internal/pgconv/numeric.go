package pgconv

import (
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5/pgtype"
)

// NumericToInt64 converts a pgtype.Numeric read from a numeric(15,0) column
// to int64 cents. NULL, fractional exponents, and int64 overflow are errors:
// a regulated money column must never lose precision silently.
func NumericToInt64(n pgtype.Numeric) (int64, error) {
	if !n.Valid {
		return 0, fmt.Errorf("numeric value is NULL")
	}

	// pgtype stores the value as Int * 10^Exp.
	v := new(big.Int).Set(n.Int)
	switch {
	case n.Exp > 0:
		v.Mul(v, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n.Exp)), nil))
	case n.Exp < 0:
		return 0, fmt.Errorf("numeric value has fractional digits (exp %d)", n.Exp)
	}

	if !v.IsInt64() {
		return 0, fmt.Errorf("numeric value %s overflows int64", v.String())
	}
	return v.Int64(), nil
}

// Int64ToNumeric converts int64 cents to a pgtype.Numeric for writing to a
// numeric(15,0) column.
func Int64ToNumeric(v int64) pgtype.Numeric {
	return pgtype.Numeric{
		Int:              big.NewInt(v),
		Exp:              0,
		InfinityModifier: pgtype.Finite,
		Valid:            true,
	}
}
