package pointers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relabs-tech/plantparenthood/core/model"
)

func TestPointers(t *testing.T) {
	assert.Equal(t, "", SafeString(nil))
	assert.Equal(t, "x", SafeString(StringPtr("x")))

	assert.Nil(t, NonEmpty(nil))
	assert.Nil(t, NonEmpty(StringPtr("")))
	assert.Equal(t, "id", *NonEmpty(StringPtr("id")))

	d := model.MustParseDate("2024-01-15")
	assert.Equal(t, "2024-01-15", DatePtr(d).String())
}
