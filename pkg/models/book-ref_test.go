package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBookRef(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    BookRef
		wantErr bool
	}{
		{in: "local:3f2a", want: LocalRef("3f2a")},
		{in: "online:42", want: OnlineRef(0, 42)},
		{in: "online:42:7", want: OnlineRef(7, 42)},
		{in: "local:", wantErr: true},
		{in: "online:abc", wantErr: true},
		{in: "online:0", wantErr: true},
		{in: "online:42:x", wantErr: true},
		{in: "cloud:1", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBookRef(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestBookRef_Key(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "abc", LocalRef("abc").Key())
	assert.Equal(t, "42", OnlineRef(7, 42).Key())
	assert.Equal(t, OnlineRef(1, 42).Key(), OnlineRef(9, 42).Key())
}

func TestBookRef_JSON(t *testing.T) {
	t.Parallel()

	payload := struct {
		Book BookRef `json:"book"`
	}{Book: OnlineRef(3, 42)}

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"book":"online:42:3"}`, string(data))

	payload.Book = BookRef{}
	require.NoError(t, json.Unmarshal([]byte(`{"book":"local:xyz"}`), &payload))
	assert.Equal(t, LocalRef("xyz"), payload.Book)
}

func TestBookRef_Validate(t *testing.T) {
	t.Parallel()
	require.NoError(t, LocalRef("a").Validate())
	require.NoError(t, OnlineRef(0, 1).Validate())
	require.Error(t, LocalRef("").Validate())
	require.Error(t, OnlineRef(1, 0).Validate())
	require.Error(t, BookRef{}.Validate())
}
