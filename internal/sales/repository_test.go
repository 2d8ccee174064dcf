package sales

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSaleItemsKeepTicketOrder(t *testing.T) {
	assert.Contains(t, insertItemSQL, "line_no")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(selectItemsSQL), "ORDER BY sale_id, line_no"), selectItemsSQL)
}
