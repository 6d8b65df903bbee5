package catalog

import (
	"net/http"

	"github.com/caia/concierge/internal/services/catalog"
	"github.com/caia/concierge/pkg/httpext"
	"github.com/caia/concierge/pkg/protocol"
)

type ProductsResponse struct {
	Products []protocol.Product `json:"products"`
}

func HandleListProducts(cat *catalog.Catalog, w http.ResponseWriter, r *http.Request) {
	products := cat.Products
	if products == nil {
		products = []protocol.Product{}
	}
	httpext.JsonResponse(w, http.StatusOK, ProductsResponse{Products: products})
}
