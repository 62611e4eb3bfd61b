package state

// validTransitions lists the forward moves each step may make. Back navigation and returns to the
// main menu are always allowed.
var validTransitions = map[State][]State{
	StateSelectLanguage: {},
	StateMainMenu: {
		StateBusinessInfo,
		StateOrderHistoryMenu,
		StateSelectCategory,
		StateSelectSubcategory,
		StateSelectSubsubcategory,
		StateSelectProduct,
		StateSelectLanguage,
		StateSelectReceiptOption,
		StateCustomerService,
	},
	StateBusinessInfo: {},
	StateSelectCategory: {
		StateSelectSubcategory,
		StateSelectSubsubcategory,
		StateSelectProduct,
	},
	StateSelectSubcategory: {
		StateSelectSubsubcategory,
		StateSelectProduct,
	},
	StateSelectSubsubcategory: {
		StateSelectProduct,
	},
	StateSelectProduct: {
		StateSelectVariant,
	},
	StateSelectVariant: {
		StateEnterQuantity,
	},
	StateEnterQuantity: {
		StateCollectName,
	},
	StateCollectName: {
		StateCollectAddress,
		StateConfirmOrder,
	},
	StateCollectAddress: {
		StateCollectEmail,
		StateConfirmOrder,
	},
	StateCollectEmail: {
		StateCollectPhone,
		StateConfirmOrder,
	},
	StateCollectPhone: {
		StateConfirmOrder,
	},
	StateConfirmOrder: {
		StateSelectPaymentMethod,
		StateCollectName,
		StateCollectAddress,
		StateCollectEmail,
		StateCollectPhone,
	},
	StateSelectPaymentMethod: {
		StatePostPayment,
		StateUploadPaymentReceipt,
	},
	StateUploadPaymentReceipt: {
		StatePostPayment,
	},
	StatePostPayment: {},
	StateOrderHistoryMenu: {
		StateListOrders,
		StateAwaitingOrderCancellation,
	},
	StateListOrders: {},
	StateAwaitingOrderCancellation: {
		StateConfirmCancellation,
	},
	StateConfirmCancellation: {
		StateEnterCancellationReason,
	},
	StateEnterCancellationReason: {},
	StateSelectReceiptOption: {
		StateSelectOrderForReceiptUpload,
	},
	StateSelectOrderForReceiptUpload: {
		StateUploadPaymentReceipt,
	},
	StateCustomerService: {},
}

// IsTransitionAllowed reports whether moving forward from one state to another is valid.
func IsTransitionAllowed(from, to State) bool {
	if from == to || to == StateMainMenu {
		return true
	}

	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}

	for _, state := range allowed {
		if state == to {
			return true
		}
	}

	return false
}
