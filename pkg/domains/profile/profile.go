// Package profile is the "build my farmer profile" conversation.
package profile

import (
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/agents"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/domains"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/handoff"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/store"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/tools"
)

const (
	Name            = "profile"
	Topic           = "farwise.profile"
	CompletionEvent = "profile_completed"

	RoleIntake      = "intake"
	RoleFarmDetails = "farm_details"
	RoleReview      = "review"

	FieldName       = "name"
	FieldVillage    = "village"
	FieldDistrict   = "district"
	FieldLandAcres  = "land_acres"
	FieldCrops      = "crops"
	FieldIrrigation = "irrigation"
	FieldSoilType   = "soil_type"

	SaveToolName = "save_profile"
)

var Fields = []string{
	FieldName, FieldVillage, FieldDistrict,
	FieldLandAcres, FieldCrops, FieldIrrigation, FieldSoilType,
}

var (
	IrrigationTypes = []string{"rainfed", "canal", "borewell", "drip", "sprinkler"}
	SoilTypes       = []string{"black", "red", "alluvial", "laterite", "sandy", "clay", "loamy"}
)

const intakeInstructions = `You are Farwise, a friendly assistant helping a farmer set up their profile.
You talk over voice: keep every reply to one or two short sentences and ask one question at a time.
Collect the farmer's name, village and district. Record each answer with the matching tool as soon as you hear it.
When all three are known, hand over to {{ index .Handoffs 0 }} with transfer_to_agent.`

const farmInstructions = `You are Farwise, continuing the farmer's profile.
You talk over voice: short replies, one question at a time.
Collect land size in acres, the crops they grow, irrigation (rainfed, canal, borewell, drip or sprinkler) and soil type.
Record each answer with the matching tool. When everything is known, transfer to {{ index .Handoffs 0 }}.
If the farmer wants to change their name, village or district, transfer back to intake.`

const reviewInstructions = `You are Farwise, finishing the farmer's profile.
Read the collected profile back in one or two sentences and ask the farmer to confirm.
Fix anything they correct with the setter tools. Once they confirm, call save_profile with confirmed set to true.
Never claim the profile is saved before save_profile succeeded.`

// Roles returns the role definitions of the profile conversation.
func Roles() []*agents.Role {
	return []*agents.Role{
		{
			Name:         RoleIntake,
			Description:  "collects name and location",
			Instructions: intakeInstructions,
			Localized: map[string]string{
				"hi": "आप Farwise हैं, किसान की प्रोफ़ाइल बनाने में मदद करने वाले सहायक। छोटे वाक्यों में, एक समय में एक सवाल पूछें। किसान का नाम, गाँव और ज़िला पूछें और हर जवाब को तुरंत सही टूल से दर्ज करें। तीनों मिल जाने पर transfer_to_agent से {{ index .Handoffs 0 }} को सौंपें।",
			},
			Voices:   map[string]string{"": "alloy", "hi": "shimmer"},
			Tools:    []string{domains.SetterName(FieldName), domains.SetterName(FieldVillage), domains.SetterName(FieldDistrict)},
			Handoffs: []string{RoleFarmDetails},
			OnEnter: agents.EnterBehavior{
				Instructions: "Greet the farmer by name if you know it and ask for the first missing detail.",
			},
		},
		{
			Name:         RoleFarmDetails,
			Description:  "collects land, crops, irrigation and soil",
			Instructions: farmInstructions,
			Voices:       map[string]string{"": "alloy", "hi": "shimmer"},
			Tools: []string{
				domains.SetterName(FieldLandAcres), domains.SetterName(FieldCrops),
				domains.SetterName(FieldIrrigation), domains.SetterName(FieldSoilType),
			},
			Handoffs: []string{RoleReview, RoleIntake},
			OnEnter: agents.EnterBehavior{
				Instructions: "Briefly say you will now ask about the farm and ask the first missing question.",
			},
		},
		{
			Name:         RoleReview,
			Description:  "confirms and saves the profile",
			Instructions: reviewInstructions,
			Voices:       map[string]string{"": "alloy", "hi": "shimmer"},
			Tools: append([]string{SaveToolName}, func() []string {
				ret := []string{}
				for _, f := range Fields {
					ret = append(ret, domains.SetterName(f))
				}
				return ret
			}()...),
			Handoffs: []string{RoleFarmDetails},
			OnEnter: agents.EnterBehavior{
				Instructions: "Summarize the collected profile and ask the farmer to confirm it.",
			},
		},
	}
}

// Tools returns the tool definitions, the terminal one writing to st.
func Tools(st store.Store) []*tools.Definition {
	return []*tools.Definition{
		domains.TextField(FieldName, "Record the farmer's name."),
		domains.TextField(FieldVillage, "Record the farmer's village."),
		domains.TextField(FieldDistrict, "Record the farmer's district."),
		domains.NumberField(FieldLandAcres, "Record the land size in acres."),
		domains.ListField(FieldCrops, "Record the crops the farmer grows."),
		domains.EnumField(FieldIrrigation, "Record the main irrigation source.", IrrigationTypes...),
		domains.EnumField(FieldSoilType, "Record the soil type.", SoilTypes...),
		domains.SaveTool(SaveToolName, "Save the confirmed profile. Only call after the farmer confirmed.",
			Name, st, FieldName, FieldVillage, FieldCrops),
		handoff.NewTransferTool(RoleIntake, RoleFarmDetails, RoleReview),
	}
}

func New(st store.Store) *domains.Domain {
	return &domains.Domain{
		Name:            Name,
		Topic:           Topic,
		CompletionEvent: CompletionEvent,
		Fields:          Fields,
		Roles:           Roles(),
		InitialRole:     RoleIntake,
		Tools:           Tools(st),
	}
}
