package database

import (
	"testing"

	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestExtractStat(t *testing.T) {
	info := "# Stats\r\nkeyspace_hits:42\r\nkeyspace_misses:7\r\n"

	assert.Equal(t, "42", extractStat(info, "keyspace_hits"))
	assert.Equal(t, "7", extractStat(info, "keyspace_misses"))
	assert.Equal(t, "0", extractStat(info, "evicted_keys"))
}

func TestModels_OrderedParentsFirst(t *testing.T) {
	all := Models()
	assert.Len(t, all, 6)
	assert.IsType(t, &models.ChatSession{}, all[0])
	assert.IsType(t, &models.Query{}, all[1])
	assert.IsType(t, &models.Feedback{}, all[2])
	assert.IsType(t, &models.LegalDocument{}, all[3])
	assert.IsType(t, &models.DocumentSection{}, all[4])
}
