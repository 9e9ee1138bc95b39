// Package activity is the "log today's farm activity" conversation.
package activity

import (
	"context"
	"time"

	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/agents"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/domains"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/handoff"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/state"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/store"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/tools"
)

const (
	Name            = "activity"
	Topic           = "farwise.activity"
	CompletionEvent = "activity_logged"

	RoleLogger  = "logger"
	RoleConfirm = "confirm"

	FieldActivity = "activity"
	FieldCrop     = "crop"
	FieldPlot     = "plot"
	FieldQuantity = "quantity"
	FieldUnit     = "unit"
	FieldNotes    = "notes"
	FieldDate     = "activity_date"

	SaveToolName = "save_activity"

	dateLayout = "2006-01-02"
)

var Fields = []string{FieldActivity, FieldCrop, FieldPlot, FieldQuantity, FieldUnit, FieldNotes, FieldDate}

var (
	Activities = []string{"sowing", "irrigation", "fertilizer", "pesticide", "weeding", "harvesting", "other"}
	Units      = []string{"kg", "litre", "bag", "acre", "hour"}
)

const loggerInstructions = `You are Farwise, helping a farmer log what they did on the farm today.
You talk over voice: short replies, one question at a time.
Find out the activity, the crop and the plot, and when it applies the quantity with its unit. Notes are optional.
Record every answer with the matching tool right away.
When activity and crop are known, transfer to {{ index .Handoffs 0 }}.`

const confirmInstructions = `You are Farwise, confirming a farm activity log.
Read the logged activity back in one sentence and ask the farmer to confirm.
Correct fields with the setter tools if asked. When the farmer wants to add more details, transfer back to {{ index .Handoffs 0 }}.
Once confirmed, call save_activity with confirmed set to true.`

type dateInput struct {
	Value string `json:"value" jsonschema:"pattern=^[0-9]{4}-[0-9]{2}-[0-9]{2}$,description=Date as YYYY-MM-DD"`
}

func dateField() *tools.Definition {
	return tools.MustNewTool(domains.SetterName(FieldDate), "Record the date of the activity when it was not today.",
		func(ctx context.Context, s *state.Session, in dateInput) (*tools.Result, error) {
			d, err := time.Parse(dateLayout, in.Value)
			if err != nil {
				return nil, err
			}
			if err := s.Set(FieldDate, d.Format(dateLayout)); err != nil {
				return nil, err
			}
			return tools.NewResult("date recorded as %s", d.Format(dateLayout)), nil
		})
}

func setters() []string {
	ret := []string{}
	for _, f := range Fields {
		ret = append(ret, domains.SetterName(f))
	}
	return ret
}

func Roles() []*agents.Role {
	return []*agents.Role{
		{
			Name:         RoleLogger,
			Description:  "collects the activity details",
			Instructions: loggerInstructions,
			Voices:       map[string]string{"": "alloy", "hi": "shimmer"},
			Tools:        setters(),
			Handoffs:     []string{RoleConfirm},
			OnEnter: agents.EnterBehavior{
				Instructions: "Greet the farmer and ask what they worked on today.",
			},
		},
		{
			Name:         RoleConfirm,
			Description:  "confirms and saves the log entry",
			Instructions: confirmInstructions,
			Voices:       map[string]string{"": "alloy", "hi": "shimmer"},
			Tools:        append([]string{SaveToolName}, setters()...),
			Handoffs:     []string{RoleLogger},
			OnEnter: agents.EnterBehavior{
				Instructions: "Read the activity back and ask for confirmation.",
			},
		},
	}
}

func Tools(st store.Store) []*tools.Definition {
	return []*tools.Definition{
		domains.EnumField(FieldActivity, "Record the kind of activity.", Activities...),
		domains.TextField(FieldCrop, "Record the crop the activity was for."),
		domains.TextField(FieldPlot, "Record the plot or field name."),
		domains.NumberField(FieldQuantity, "Record the quantity used or harvested."),
		domains.EnumField(FieldUnit, "Record the unit of the quantity.", Units...),
		domains.TextField(FieldNotes, "Record free form notes."),
		dateField(),
		domains.SaveTool(SaveToolName, "Save the confirmed activity log entry.",
			Name, st, FieldActivity, FieldCrop, FieldDate),
		handoff.NewTransferTool(RoleLogger, RoleConfirm),
	}
}

// prepare keys the log entry by day and defaults the date to today. A target
// that is not a date keeps its id but does not become the activity date.
func prepare(now func() time.Time) func(seed *state.Seed) {
	return func(seed *state.Seed) {
		today := now().Format(dateLayout)
		if seed.TargetID == "" {
			seed.TargetID = today
		}
		if _, ok := seed.Values[FieldDate]; ok {
			return
		}
		seed.Values[FieldDate] = today
		if _, err := time.Parse(dateLayout, seed.TargetID); err == nil {
			seed.Values[FieldDate] = seed.TargetID
		}
	}
}

func New(st store.Store) *domains.Domain {
	return &domains.Domain{
		Name:            Name,
		Topic:           Topic,
		CompletionEvent: CompletionEvent,
		Fields:          Fields,
		Roles:           Roles(),
		InitialRole:     RoleLogger,
		Tools:           Tools(st),
		Prepare:         prepare(time.Now),
	}
}
