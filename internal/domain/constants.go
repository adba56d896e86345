package domain

const (
	RoleGuest      = "guest"
	RoleUser       = "user"
	RoleMember     = "member"
	RolePremium    = "premium"
	RoleVIP        = "vip"
	RoleModerator  = "moderator"
	RoleAdmin      = "admin"
	RoleSuperadmin = "superadmin"
)

// Roles lists every assignable role.
var Roles = []string{RoleGuest, RoleUser, RoleMember, RolePremium, RoleVIP, RoleModerator, RoleAdmin, RoleSuperadmin}

// StaffRoles may use the admin surface.
var StaffRoles = []string{RoleModerator, RoleAdmin, RoleSuperadmin}

const (
	TxTypeDebit    = "debit"
	TxTypeCredit   = "credit"
	TxTypeExchange = "exchange"
)

const (
	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
	TxStatusCancelled = "cancelled"
)

const (
	ListingStatusActive   = "active"
	ListingStatusSold     = "sold"
	ListingStatusArchived = "archived"
)

const (
	PaymentKindBankTransfer = "bank_transfer"
	PaymentKindCard         = "card"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusPaid      = "paid"
	PaymentStatusCancelled = "cancelled"
	PaymentStatusFailed    = "failed"
)

const (
	LegacyStatusPending   = "pending"
	LegacyStatusConfirmed = "confirmed"
	LegacyStatusRejected  = "rejected"
)

// Historical payment channels accepted for legacy verification.
const (
	PaidWithNaho   = "naho"
	PaidWithPayPal = "paypal"
	PaidWithTipeee = "tipeee"
	PaidWithCash   = "cash"
	PaidWithCheque = "cheque"
)

var LegacyChannels = []string{PaidWithNaho, PaidWithPayPal, PaidWithTipeee, PaidWithCash, PaidWithCheque}

const (
	ContentKindCourse  = "course"
	ContentKindVideo   = "video"
	ContentKindPost    = "post"
	ContentKindGoodie  = "goodie"
	ContentKindPartner = "partner"
)

var ContentKinds = []string{ContentKindCourse, ContentKindVideo, ContentKindPost, ContentKindGoodie, ContentKindPartner}

const (
	NotifTransferReceived   = "TRANSFER_RECEIVED"
	NotifListingSold        = "LISTING_SOLD"
	NotifPaymentConfirmed   = "PAYMENT_CONFIRMED"
	NotifLegacyConfirmed    = "LEGACY_CONFIRMED"
	NotifLegacyRejected     = "LEGACY_REJECTED"
	NotifReferralCommission = "REFERRAL_COMMISSION"
)

// Admin-configurable setting keys.
const (
	SettingReferralCommission = "referral_commission_credits"
)

// MaxReferralCommissions caps how many paid conversions of one referred account earn a commission.
const MaxReferralCommissions = 2
