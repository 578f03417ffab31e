package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDSN(t *testing.T) {
	o := Options{User: "app", Pass: "secret", Host: "db", Port: "3306", Name: "market"}
	assert.Equal(t, "app:secret@tcp(db:3306)/market?charset=utf8mb4&parseTime=true&loc=UTC", o.DSN())

	o.Pass = ""
	assert.True(t, strings.HasPrefix(o.DSN(), "app@tcp(db:3306)/market"))
}

func TestSchemaIsIdempotent(t *testing.T) {
	for _, stmt := range schema {
		assert.Contains(t, stmt, "CREATE TABLE IF NOT EXISTS")
	}
}
