package record_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ChinmayNoob/lsmkv/record"
)

func TestOptionalSomeNone(t *testing.T) {
	some := record.Some(record.Photo{ID: "a"})
	assert.True(t, some.Present)
	assert.Equal(t, "a", some.Value.ID)

	none := record.None[record.Photo]()
	assert.False(t, none.Present)
}

func TestOperationConstructors(t *testing.T) {
	ins := record.Insert(record.Photo{ID: "a", URL: "u"})
	assert.Equal(t, record.OpInsert, ins.Kind)
	assert.Equal(t, "a", ins.Key)
	assert.Equal(t, "u", ins.Record.URL)

	del := record.Delete[record.Photo]("a")
	assert.Equal(t, record.OpDelete, del.Kind)
	assert.Equal(t, "a", del.Key)
}

func TestPhotoRecord(t *testing.T) {
	p := record.Photo{ID: "id-1", URL: "u", ThumbnailURL: "t"}
	assert.Equal(t, "id-1", p.Key())
	assert.Equal(t, "Photo", p.TypeName())
	assert.Equal(t, p, p.Clone())
}
