package localcache

const (
	KeyUser = "urbanwear_user"
	// KeyUserUnconfirmed flags a session opened while the store was offline.
	KeyUserUnconfirmed = "urbanwear_user_unconfirmed"
	KeyAddresses       = "urbanwear_addresses"
	KeyWishlist        = "urbanwear_wishlist"
	KeySessionOrders   = "urbanwear_orders" // pre per-user history
	KeyProductsMeta    = "urbanwear_products_meta"
	KeyLegacyProducts  = "urbanwear_products" // full records with images
	KeyAllOrders       = "urbanwear_all_orders"
	KeySettings        = "storeSettings"
	KeyAdminSession    = "urbanwear_admin_auth"
	KeyMigrated        = "urbanwear_migrated_to_supabase"
	KeyCart            = "urbanwear_cart"

	userOrdersPrefix = "urbanwear_orders_"
)

// UserOrdersKey is the per-user order history entry for email.
func UserOrdersKey(email string) string { return userOrdersPrefix + email }
