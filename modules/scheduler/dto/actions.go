package dto

// Dispatch action names.
const (
	ActionGetAppointmentOptions          = "getAppointmentOptions"
	ActionGetSlot                        = "getSlot"
	ActionReserveSlot                    = "reserveSlot"
	ActionCancelAppointment              = "cancelAppointment"
	ActionGetCancelConfirmation          = "getCancelConfirmation"
	ActionCancelAppointmentFromURL       = "cancelAppointmentFromUrl"
	ActionResetSlot                      = "resetSlot"
	ActionResetAppointment               = "resetAppointment"
	ActionResetSlotAndAppointment        = "resetSlotAndAppointment"
	ActionGetSlotsVerificationData       = "getSlotsVerificationData"
	ActionGetAppointmentVerificationData = "getAppointmentVerificationData"
	ActionGetRepairLog                   = "getRepairLog"
	ActionExportVerificationReport       = "exportVerificationReport"
	ActionGetConfigsForContext           = "getConfigsForContext"
)
