package basketapi

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	formcodec "github.com/go-playground/form/v4"

	"github.com/MarcGrol/basketbackend/lib/myerrors"
	"github.com/MarcGrol/basketbackend/services/basket/basketmodel"
)

// Item is the wire representation of a basket line. Prices travel as euros
// and are converted to cents at this boundary.
type Item struct {
	ProductName string  `json:"productName" form:"productName"`
	ProductID   string  `json:"productId" form:"productId"`
	Count       int     `json:"count" form:"count"`
	Price       float64 `json:"price" form:"price"`
}

type Basket struct {
	Items            []Item  `json:"items"`
	TotalSpent       float64 `json:"totalSpent"`
	RemainingBalance float64 `json:"remainingBalance"`
}

var productIDPattern = regexp.MustCompile(`^\d-\d-\d-\d-\d-\d$`)

func NewItemFromRequest(r *http.Request) (Item, error) {
	item := Item{}

	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "application/json"):
		err := json.NewDecoder(r.Body).Decode(&item)
		if err != nil {
			return Item{}, myerrors.NewInvalidInputErrorf("error decoding item payload: %s", err)
		}
	case contentType == "" || strings.HasPrefix(contentType, "application/x-www-form-urlencoded"):
		err := r.ParseForm()
		if err != nil {
			return Item{}, myerrors.NewInvalidInputError(err)
		}
		item, err = newItemFromValues(r.Form)
		if err != nil {
			return Item{}, err
		}
	default:
		return Item{}, myerrors.NewNotImplementedError(fmt.Errorf("cannot handle content-type %s", contentType))
	}

	err := item.validate()
	if err != nil {
		return Item{}, err
	}

	return item, nil
}

func newItemFromValues(values url.Values) (Item, error) {
	item := Item{}
	err := formcodec.NewDecoder().Decode(&item, values)
	if err != nil {
		return Item{}, myerrors.NewInvalidInputErrorf("error decoding form: %s", err)
	}
	return item, nil
}

func (i Item) validate() error {
	if len(i.ProductName) > 255 {
		return myerrors.NewInvalidInputErrorf("productName must not exceed 255 characters")
	}
	if !productIDPattern.MatchString(i.ProductID) {
		return myerrors.NewInvalidInputErrorf("productId must have format '1-2-3-4-5-6'")
	}
	if i.Count < 1 || i.Count > 10 {
		return myerrors.NewInvalidInputErrorf("count must be between 1 and 10")
	}
	if i.Price < 10.00 || i.Price > 100.00 {
		return myerrors.NewInvalidInputErrorf("price must be between 10.00 and 100.00")
	}
	return nil
}

func (i Item) ToModel() basketmodel.Item {
	return basketmodel.Item{
		ProductID:   i.ProductID,
		ProductName: i.ProductName,
		Count:       i.Count,
		Price:       int(math.Round(i.Price * 100)),
	}
}

func ItemFromModel(item basketmodel.Item) Item {
	return Item{
		ProductName: item.ProductName,
		ProductID:   item.ProductID,
		Count:       item.Count,
		Price:       centsToEuros(item.Price),
	}
}

func BasketFromModel(basket basketmodel.Basket) Basket {
	items := make([]Item, 0, len(basket.Items))
	for _, item := range basket.Items {
		items = append(items, ItemFromModel(item))
	}

	return Basket{
		Items:            items,
		TotalSpent:       centsToEuros(basket.TotalPrice),
		RemainingBalance: centsToEuros(basket.RemainingBalance),
	}
}

func centsToEuros(cents int) float64 {
	return float64(cents) / 100.0
}
