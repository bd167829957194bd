package domain

// FuelDispenserMCC is the category code of automated fuel dispensers, which authorize
// before the final amount is known.
const FuelDispenserMCC = 5542

// IsFuelDispenser reports whether the merchant is an automated fuel dispenser.
func (m Merchant) IsFuelDispenser() bool {
	return m.CategoryCode == FuelDispenserMCC
}

// MccGroup groups merchant category codes for spend controls.
type MccGroup string

const (
	MccAirlines             MccGroup = "AIRLINES"
	MccCarRental            MccGroup = "CAR_RENTAL"
	MccLodging              MccGroup = "LODGING"
	MccTransportation       MccGroup = "TRANSPORTATION"
	MccUtilities            MccGroup = "UTILITIES"
	MccRetail               MccGroup = "RETAIL"
	MccGrocery              MccGroup = "GROCERY"
	MccFuel                 MccGroup = "FUEL"
	MccRestaurants          MccGroup = "RESTAURANTS"
	MccEntertainment        MccGroup = "ENTERTAINMENT"
	MccProfessionalServices MccGroup = "PROFESSIONAL_SERVICES"
	MccGovernment           MccGroup = "GOVERNMENT"
	MccOther                MccGroup = "OTHER"
)

type mccRange struct {
	from, to int
	group    MccGroup
}

// Single codes come before the ranges that contain them.
var mccRanges = []mccRange{
	{4511, 4511, MccAirlines},
	{7512, 7512, MccCarRental},
	{7011, 7011, MccLodging},
	{5411, 5411, MccGrocery},
	{5541, 5542, MccFuel},
	{5812, 5814, MccRestaurants},
	{3000, 3350, MccAirlines},
	{3351, 3500, MccCarRental},
	{3501, 3999, MccLodging},
	{4000, 4799, MccTransportation},
	{4800, 4999, MccUtilities},
	{5000, 5999, MccRetail},
	{7800, 7999, MccEntertainment},
	{8000, 8999, MccProfessionalServices},
	{9000, 9999, MccGovernment},
}

// MccGroupOf maps a merchant category code to its group.
func MccGroupOf(mcc int) MccGroup {
	for _, r := range mccRanges {
		if mcc >= r.from && mcc <= r.to {
			return r.group
		}
	}
	return MccOther
}

// AuthorizationMethod is how the card was presented.
type AuthorizationMethod string

const (
	MethodChip        AuthorizationMethod = "CHIP"
	MethodContactless AuthorizationMethod = "CONTACTLESS"
	MethodSwipe       AuthorizationMethod = "SWIPE"
	MethodKeyedIn     AuthorizationMethod = "KEYED_IN"
	MethodOnline      AuthorizationMethod = "ONLINE"
)

// PaymentType is the spend control category derived from the authorization method.
type PaymentType string

const (
	PaymentPOS         PaymentType = "POS"
	PaymentOnline      PaymentType = "ONLINE"
	PaymentManualEntry PaymentType = "MANUAL_ENTRY"
)

// PaymentTypeOf maps an authorization method to a payment type. Unknown methods count as ONLINE.
func PaymentTypeOf(method AuthorizationMethod) PaymentType {
	switch method {
	case MethodChip, MethodContactless, MethodSwipe:
		return PaymentPOS
	case MethodKeyedIn:
		return PaymentManualEntry
	default:
		return PaymentOnline
	}
}
