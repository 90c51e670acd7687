package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_Unmarshal(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantBookID BookID
		fileBacked bool
	}{
		{
			name:       "numeric id_book",
			body:       `{"job_id":"a","filename":"book.pdf","meta":{"id_book":42,"source_data":"kabis"}}`,
			wantBookID: "42",
			fileBacked: true,
		},
		{
			name:       "string id_book",
			body:       `{"job_id":"a","filename":null,"meta":{"id_book":" 7 ","title_book":"T"}}`,
			wantBookID: "7",
			fileBacked: false,
		},
		{
			name:       "blank filename is metadata only",
			body:       `{"job_id":"a","filename":"  ","meta":{"id_book":null}}`,
			wantBookID: "",
			fileBacked: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg Message
			require.NoError(t, json.Unmarshal([]byte(tt.body), &msg))
			require.NotNil(t, msg.Meta)
			assert.Equal(t, tt.wantBookID, msg.Meta.BookID)
			assert.Equal(t, tt.fileBacked, msg.FileBacked())
		})
	}
}

func TestBookID_RejectsObjects(t *testing.T) {
	var b BookID
	assert.Error(t, json.Unmarshal([]byte(`{"x":1}`), &b))
}
