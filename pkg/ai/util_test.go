package ai

import (
	"testing"
)

type candidateNode struct {
	Label string `json:"label"`
	Type  string `json:"type"`
}

type extraction struct {
	Nodes []candidateNode `json:"nodes"`
}

func TestUnmarshalFlexibleObjectVariants(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  candidateNode
	}{
		{
			name:  "valid json object",
			input: `{"label":"Alice","type":"PERSON"}`,
			want:  candidateNode{Label: "Alice", Type: "PERSON"},
		},
		{
			name:  "unquoted keys and single quotes",
			input: `{label: 'Alice', type: 'PERSON'}`,
			want:  candidateNode{Label: "Alice", Type: "PERSON"},
		},
		{
			name:  "trailing comma",
			input: `{"label":"Alice","type":"PERSON",}`,
			want:  candidateNode{Label: "Alice", Type: "PERSON"},
		},
		{
			name:  "missing end bracket",
			input: `{"label":"Alice","type":"PERSON"`,
			want:  candidateNode{Label: "Alice", Type: "PERSON"},
		},
		{
			name:  "stringified invalid json object",
			input: `"{label: 'Alice', type: 'PERSON'}"`,
			want:  candidateNode{Label: "Alice", Type: "PERSON"},
		},
		{
			name:  "duplicate leading brace",
			input: "{\n{\n  \"label\": \"Alice\",\n  \"type\": \"PERSON\"\n}\n",
			want:  candidateNode{Label: "Alice", Type: "PERSON"},
		},
		{
			name:  "duplicate leading brace no newlines",
			input: `{ { "label": "Alice", "type": "PERSON" }`,
			want:  candidateNode{Label: "Alice", Type: "PERSON"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got candidateNode
			if err := UnmarshalFlexible(tc.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible() error = %v", err)
			}
			if got != tc.want {
				t.Fatalf("UnmarshalFlexible() got = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestUnmarshalFlexibleArrayVariants(t *testing.T) {
	input := `[{label:'Alice',type:'PERSON'},{label:'Acme',type:'ORGANIZATION',}]`
	var got []candidateNode
	if err := UnmarshalFlexible(input, &got); err != nil {
		t.Fatalf("UnmarshalFlexible() error = %v", err)
	}
	if len(got) != 2 || got[0].Label != "Alice" || got[1].Label != "Acme" {
		t.Fatalf("UnmarshalFlexible() got = %+v, want Alice and Acme", got)
	}
}

func TestUnmarshalFlexibleUnrecoverable(t *testing.T) {
	var got candidateNode
	if err := UnmarshalFlexible("I could not find any entities", &got); err == nil {
		t.Fatalf("UnmarshalFlexible() expected error for unrecoverable input")
	}
}

func TestUnmarshalFlexibleNestedResponse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  extraction
	}{
		{
			name:  "stringified payload",
			input: `"{ \"nodes\": [ { \"label\": \"Alice\", \"type\": \"PERSON\" }, { \"label\": \"Berlin\", \"type\": \"LOCATION\" } ] }"`,
			want: extraction{Nodes: []candidateNode{
				{Label: "Alice", Type: "PERSON"},
				{Label: "Berlin", Type: "LOCATION"},
			}},
		},
		{
			name:  "stringified payload with newlines",
			input: "\"{\\n  \\\"nodes\\\": [\\n    {\\\"label\\\": \\\"Alice\\\", \\\"type\\\": \\\"PERSON\\\"}\\n  ]\\n}\\n\"",
			want: extraction{Nodes: []candidateNode{
				{Label: "Alice", Type: "PERSON"},
			}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got extraction
			if err := UnmarshalFlexible(tc.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible() error = %v", err)
			}
			if len(got.Nodes) != len(tc.want.Nodes) {
				t.Fatalf("UnmarshalFlexible() nodes = %+v, want %+v", got.Nodes, tc.want.Nodes)
			}
			for i := range got.Nodes {
				if got.Nodes[i] != tc.want.Nodes[i] {
					t.Fatalf("UnmarshalFlexible() nodes[%d] = %+v, want %+v", i, got.Nodes[i], tc.want.Nodes[i])
				}
			}
		})
	}
}
