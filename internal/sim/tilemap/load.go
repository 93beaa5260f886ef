package tilemap

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	LayerGround    = "ground"
	LayerCollision = "collision"
	LayerInteract  = "interact"
)

//go:embed maps/lobby.tmj
var lobbyAsset []byte

// LobbyAsset returns the raw embedded default map document.
func LobbyAsset() []byte { return lobbyAsset }

const assetSchemaURL = "tiledmap.schema.json"

// Structural checks only; shape (data length vs dimensions) is checked in Parse.
const assetSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["width", "height", "tilewidth", "tileheight", "layers"],
  "properties": {
    "width":      {"type": "integer", "minimum": 1},
    "height":     {"type": "integer", "minimum": 1},
    "tilewidth":  {"type": "integer", "minimum": 1},
    "tileheight": {"type": "integer", "minimum": 1},
    "layers": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["type", "name"],
        "properties": {
          "type": {"type": "string"},
          "name": {"type": "string"}
        },
        "allOf": [
          {
            "if": {"properties": {"type": {"const": "tilelayer"}}},
            "then": {
              "required": ["data", "width", "height"],
              "properties": {
                "width":  {"type": "integer", "minimum": 1},
                "height": {"type": "integer", "minimum": 1},
                "data":   {"type": "array", "items": {"type": "integer"}}
              }
            }
          },
          {
            "if": {"properties": {"type": {"const": "objectgroup"}}},
            "then": {
              "required": ["objects"],
              "properties": {
                "objects": {
                  "type": "array",
                  "items": {
                    "type": "object",
                    "required": ["id", "x", "y", "width", "height"],
                    "properties": {
                      "id":     {"type": "integer"},
                      "name":   {"type": "string"},
                      "type":   {"type": "string"},
                      "x":      {"type": "number"},
                      "y":      {"type": "number"},
                      "width":  {"type": "number"},
                      "height": {"type": "number"},
                      "properties": {
                        "type": "array",
                        "items": {
                          "type": "object",
                          "required": ["name", "value"],
                          "properties": {
                            "name":  {"type": "string"},
                            "type":  {"type": "string"},
                            "value": {"type": ["string", "number", "boolean"]}
                          }
                        }
                      }
                    }
                  }
                }
              }
            }
          }
        ]
      }
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(assetSchemaURL, strings.NewReader(assetSchema)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile(assetSchemaURL)
	})
	return schema, schemaErr
}

type rawMap struct {
	Width      int        `json:"width"`
	Height     int        `json:"height"`
	TileWidth  int        `json:"tilewidth"`
	TileHeight int        `json:"tileheight"`
	Layers     []rawLayer `json:"layers"`
}

type rawLayer struct {
	Type    string      `json:"type"`
	Name    string      `json:"name"`
	Width   int         `json:"width"`
	Height  int         `json:"height"`
	Data    []int       `json:"data"`
	Objects []rawObject `json:"objects"`
}

type rawObject struct {
	ID         int           `json:"id"`
	Name       string        `json:"name"`
	Type       *string       `json:"type"`
	X          float64       `json:"x"`
	Y          float64       `json:"y"`
	Width      float64       `json:"width"`
	Height     float64       `json:"height"`
	Properties []rawProperty `json:"properties"`
}

type rawProperty struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// Load reads and parses a map document from disk.
func Load(path string) (*Map, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Default parses the embedded lobby map.
func Default() (*Map, error) {
	return Parse(lobbyAsset)
}

// Parse validates a Tiled-style JSON map document and builds the in-memory map.
func Parse(b []byte) (*Map, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("map json: %w", err)
	}
	s, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("map schema: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return nil, fmt.Errorf("map schema: %w", err)
	}

	var raw rawMap
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("map json: %w", err)
	}

	m := &Map{
		Width:      raw.Width,
		Height:     raw.Height,
		TileWidth:  raw.TileWidth,
		TileHeight: raw.TileHeight,
	}
	cells := raw.Width * raw.Height
	for _, l := range raw.Layers {
		switch l.Type {
		case "tilelayer":
			if l.Width != raw.Width || l.Height != raw.Height {
				return nil, fmt.Errorf("tile layer %q is %dx%d, map is %dx%d", l.Name, l.Width, l.Height, raw.Width, raw.Height)
			}
			if len(l.Data) != cells {
				return nil, fmt.Errorf("tile layer %q has %d cells, want %d", l.Name, len(l.Data), cells)
			}
			switch l.Name {
			case LayerGround:
				m.Ground = l.Data
			case LayerCollision:
				m.Collision = l.Data
			}
		case "objectgroup":
			if l.Name != LayerInteract {
				continue
			}
			for _, o := range l.Objects {
				m.zones = append(m.zones, zoneFromObject(o))
			}
		}
	}
	if m.Ground == nil {
		return nil, fmt.Errorf("missing tile layer: %s", LayerGround)
	}
	if m.Collision == nil {
		return nil, fmt.Errorf("missing tile layer: %s", LayerCollision)
	}
	return m, nil
}
