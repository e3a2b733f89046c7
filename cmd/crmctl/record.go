package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/crm/backend/internal/domain/schema"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/infrastructure/persistence/models"
	"github.com/urfave/cli/v3"
)

func entityArg() cli.Argument {
	return &cli.StringArg{Name: "entity"}
}

func idArg() cli.Argument {
	return &cli.StringArg{Name: "id"}
}

func dataFlag(required bool) cli.Flag {
	return &cli.StringFlag{
		Name:     "data",
		Aliases:  []string{"d"},
		Usage:    `Field values as a JSON object, e.g. '{"name":"Acme","balance":"10.50"}'`,
		Required: required,
	}
}

func recordCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "record",
		Aliases: []string{"rec"},
		Usage:   "Create, read and navigate CRM records",
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a record",
				Arguments: []cli.Argument{entityArg()},
				Flags:     []cli.Flag{dataFlag(true)},
				Action:    r.RecordCreate,
			},
			{
				Name:      "get",
				Usage:     "Fetch a record by id",
				Arguments: []cli.Argument{entityArg(), idArg()},
				Action:    r.RecordGet,
			},
			{
				Name:      "update",
				Usage:     "Update some fields of a record",
				Arguments: []cli.Argument{entityArg(), idArg()},
				Flags:     []cli.Flag{dataFlag(true)},
				Action:    r.RecordUpdate,
			},
			{
				Name:      "delete",
				Usage:     "Delete a record, applying each relationship's delete policy",
				Arguments: []cli.Argument{entityArg(), idArg()},
				Action:    r.RecordDelete,
			},
			{
				Name:      "list",
				Usage:     "List records page by page",
				Arguments: []cli.Argument{entityArg()},
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "page", Value: shared.DefaultFilter().Page},
					&cli.IntFlag{Name: "page-size", Value: shared.DefaultFilter().PageSize},
					&cli.StringFlag{Name: "order-by", Usage: "Sort column (primary key or any non-text field)"},
					&cli.StringFlag{Name: "order-dir", Usage: "asc or desc", Value: shared.DefaultFilter().OrderDir},
					&cli.StringSliceFlag{
						Name:    "where",
						Aliases: []string{"w"},
						Usage:   "Equality filter field=value; text fields match the raw value, others parse it as JSON, null matches unset",
					},
				},
				Action: r.RecordList,
			},
			{
				Name:  "related",
				Usage: "Resolve a navigation (collection, back-reference or many-to-many)",
				Arguments: []cli.Argument{
					entityArg(), idArg(), &cli.StringArg{Name: "navigation"},
				},
				Action: r.RecordRelated,
			},
			{
				Name:  "link",
				Usage: "Link two records through a many-to-many junction",
				Arguments: []cli.Argument{
					entityArg(), idArg(), &cli.StringArg{Name: "navigation"}, &cli.StringArg{Name: "target-id"},
				},
				Flags:  []cli.Flag{dataFlag(false)},
				Action: r.RecordLink,
			},
		},
	}
}

// RecordCreate validates and inserts a record
func (r *Runner) RecordCreate(ctx context.Context, cmd *cli.Command) error {
	entity, err := r.entityName(cmd)
	if err != nil {
		return err
	}
	rec, err := parseRecord(cmd.String("data"))
	if err != nil {
		return err
	}
	store, err := r.recordStore()
	if err != nil {
		return err
	}

	m, err := store.Create(logger.WithOperation(ctx, "crmctl.record.create"), entity, rec)
	if err != nil {
		return err
	}
	return r.writeJSON(m.Attributes(), true)
}

// RecordGet prints one record
func (r *Runner) RecordGet(ctx context.Context, cmd *cli.Command) error {
	entity, id, err := r.entityAndID(cmd)
	if err != nil {
		return err
	}
	store, err := r.recordStore()
	if err != nil {
		return err
	}

	m, err := store.Get(ctx, entity, id)
	if err != nil {
		return err
	}
	return r.writeJSON(m.Attributes(), true)
}

// RecordUpdate applies a partial update
func (r *Runner) RecordUpdate(ctx context.Context, cmd *cli.Command) error {
	entity, id, err := r.entityAndID(cmd)
	if err != nil {
		return err
	}
	rec, err := parseRecord(cmd.String("data"))
	if err != nil {
		return err
	}
	store, err := r.recordStore()
	if err != nil {
		return err
	}

	m, err := store.Update(logger.WithOperation(ctx, "crmctl.record.update"), entity, id, rec)
	if err != nil {
		return err
	}
	return r.writeJSON(m.Attributes(), true)
}

// RecordDelete removes a record
func (r *Runner) RecordDelete(ctx context.Context, cmd *cli.Command) error {
	entity, id, err := r.entityAndID(cmd)
	if err != nil {
		return err
	}
	store, err := r.recordStore()
	if err != nil {
		return err
	}

	if err := store.Delete(logger.WithOperation(ctx, "crmctl.record.delete"), entity, id); err != nil {
		return err
	}
	return r.writePlain("deleted %s %d\n", entity, id)
}

// RecordList prints a page of records
func (r *Runner) RecordList(ctx context.Context, cmd *cli.Command) error {
	entity, err := r.entityName(cmd)
	if err != nil {
		return err
	}
	filter := shared.Filter{
		Page:     cmd.Int("page"),
		PageSize: cmd.Int("page-size"),
		OrderBy:  cmd.String("order-by"),
		OrderDir: cmd.String("order-dir"),
		Filters:  make(map[string]interface{}),
	}
	e, _ := r.registry.Entity(entity)
	for _, w := range cmd.StringSlice("where") {
		field, raw, ok := strings.Cut(w, "=")
		if !ok || field == "" {
			return shared.ErrInvalidInput.Wrapf("filter %q: want field=value", w)
		}
		filter.Filters[field] = filterValue(e, field, raw)
	}

	store, err := r.recordStore()
	if err != nil {
		return err
	}
	page, err := store.List(ctx, entity, filter)
	if err != nil {
		return err
	}
	return r.writeJSON(shared.NewPaginated(attributes(page.Items), page.Total, page.Page, page.PageSize), true)
}

// RecordRelated resolves a navigation from one record
func (r *Runner) RecordRelated(ctx context.Context, cmd *cli.Command) error {
	entity, id, err := r.entityAndID(cmd)
	if err != nil {
		return err
	}
	store, err := r.recordStore()
	if err != nil {
		return err
	}

	items, err := store.Resolve(ctx, entity, id, cmd.StringArg("navigation"))
	if err != nil {
		return err
	}
	return r.writeJSON(attributes(items), true)
}

// RecordLink creates the junction record between two entities
func (r *Runner) RecordLink(ctx context.Context, cmd *cli.Command) error {
	entity, id, err := r.entityAndID(cmd)
	if err != nil {
		return err
	}
	targetID, err := strconv.ParseInt(cmd.StringArg("target-id"), 10, 64)
	if err != nil {
		return shared.ErrInvalidInput.Wrapf("target id %q is not an integer", cmd.StringArg("target-id"))
	}
	var attrs schema.Record
	if data := cmd.String("data"); data != "" {
		if attrs, err = parseRecord(data); err != nil {
			return err
		}
	}
	store, err := r.recordStore()
	if err != nil {
		return err
	}

	m, err := store.Link(ctx, entity, id, cmd.StringArg("navigation"), targetID, attrs)
	if err != nil {
		return err
	}
	return r.writeJSON(m.Attributes(), true)
}

// entityName accepts an entity, collection or table name
func (r *Runner) entityName(cmd *cli.Command) (string, error) {
	arg := cmd.StringArg("entity")
	if arg == "" {
		return "", shared.ErrInvalidInput.Wrapf("entity argument required")
	}
	if e, ok := r.registry.Entity(arg); ok {
		return e.Name, nil
	}
	if e, ok := r.registry.EntityByCollection(arg); ok {
		return e.Name, nil
	}
	if e, ok := r.registry.EntityByTable(arg); ok {
		return e.Name, nil
	}
	return "", shared.ErrUnknownEntity.Wrapf("%s", arg)
}

func (r *Runner) entityAndID(cmd *cli.Command) (string, int64, error) {
	entity, err := r.entityName(cmd)
	if err != nil {
		return "", 0, err
	}
	id, err := strconv.ParseInt(cmd.StringArg("id"), 10, 64)
	if err != nil {
		return "", 0, shared.ErrInvalidInput.Wrapf("id %q is not an integer", cmd.StringArg("id"))
	}
	return entity, id, nil
}

// parseRecord decodes a JSON object keeping numbers exact
func parseRecord(data string) (schema.Record, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()

	var rec schema.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, shared.ErrInvalidInput.Wrapf("--data must be a JSON object: %v", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, shared.ErrInvalidInput.Wrapf("--data must hold a single JSON object")
	}
	if rec == nil {
		rec = schema.Record{}
	}
	return rec, nil
}

// filterValue reads a --where value by the declared type of field. String
// and text fields keep the raw text, so digits still match a phone number;
// a quoted JSON string is unquoted and null matches unset.
func filterValue(e schema.Entity, field, raw string) any {
	f, ok := e.Field(field)
	if !ok || (f.Type != schema.FieldString && f.Type != schema.FieldText) {
		return parseScalar(raw)
	}
	if raw == "null" {
		return nil
	}
	var s string
	if strings.HasPrefix(raw, `"`) && json.Unmarshal([]byte(raw), &s) == nil {
		return s
	}
	return raw
}

// parseScalar reads a filter value as a JSON scalar, or the raw string
func parseScalar(raw string) any {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return raw
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return raw
	}
	switch v.(type) {
	case map[string]any, []any:
		return raw
	}
	return v
}

func attributes(items []models.Model) []schema.Record {
	out := make([]schema.Record, 0, len(items))
	for _, m := range items {
		out = append(out, m.Attributes())
	}
	return out
}
