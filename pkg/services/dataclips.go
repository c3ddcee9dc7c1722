package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/BolajiAyodeji/lightning/pkg/models"
	"github.com/BolajiAyodeji/lightning/pkg/persistence"
	"github.com/xeipuuv/gojsonschema"
)

// DataclipInput is the tagged-variant input for resolving a work order's
// dataclip: a raw body to insert, an id to look up, or an already validated
// record to reuse. Exactly one variant should be set; they are checked in
// the order record, id, body.
type DataclipInput struct {
	ID     string
	Body   json.RawMessage
	Type   models.DataclipType
	Record *models.Dataclip
}

// Raw bodies must parse as JSON objects before they are stored.
const dataclipBodySchema = `{"type": "object"}`

// Dataclips resolves dataclip inputs against the store.
type Dataclips struct {
	schema *gojsonschema.Schema
}

func NewDataclips() (*Dataclips, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(dataclipBodySchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile dataclip body schema: %w", err)
	}

	return &Dataclips{schema: schema}, nil
}

// Resolve turns a dataclip input into a persisted record, inserting raw
// bodies inside the caller's transaction.
func (d *Dataclips) Resolve(ctx context.Context, repos persistence.Repositories, input DataclipInput, projectID string) (*models.Dataclip, error) {
	switch {
	case input.Record != nil:
		return input.Record, nil

	case input.ID != "":
		dataclip, err := repos.Dataclips().GetByID(ctx, input.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load dataclip %s: %w", input.ID, err)
		}

		if dataclip == nil {
			return nil, NewValidationError("dataclip_id", "does not exist", ErrDataclipNotFound)
		}

		return dataclip, nil

	case len(input.Body) > 0:
		result, err := d.schema.Validate(gojsonschema.NewBytesLoader(input.Body))
		if err != nil {
			return nil, NewValidationError("dataclip_body", "is not valid JSON", ErrInvalidDataclipBody)
		}

		if !result.Valid() {
			return nil, NewValidationError("dataclip_body", "must be a JSON object", ErrInvalidDataclipBody)
		}

		dataclipType := input.Type
		if dataclipType == "" {
			dataclipType = models.DataclipTypeSavedInput
		}

		dataclip := &models.Dataclip{
			ProjectID: projectID,
			Type:      dataclipType,
			Body:      input.Body,
		}

		err = repos.Dataclips().Save(ctx, dataclip)
		if err != nil {
			return nil, fmt.Errorf("failed to save dataclip: %w", err)
		}

		return dataclip, nil

	default:
		return nil, NewValidationError("dataclip", "can't be blank", ErrDataclipRequired)
	}
}
