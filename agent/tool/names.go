package tool

const (
	ToolShowDirections        = "show_directions"
	ToolCreateTicket          = "create_ticket"
	ToolCreateAppointment     = "create_appointment"
	ToolSearchProducts        = "search_products"
	ToolConnectToSupport      = "connect_to_support"
	ToolRecordCustomerDetails = "record_customer_details"
)
