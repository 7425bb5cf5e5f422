package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/silentius-satoshi/ZapTok-sub008/cashu"
)

// The mint is a black-box collaborator reached over its HTTP API.
// Only the endpoints the wallet needs are wired up here.

// MintInfo is the subset of a mint's /v1/info response the wallet
// cares about.
type MintInfo struct {
	Name        string `json:"name"`
	Pubkey      string `json:"pubkey"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

type KeysetKeys struct {
	Id   string            `json:"id"`
	Unit string            `json:"unit"`
	Keys map[uint64]string `json:"keys"`
}

type GetKeysResponse struct {
	Keysets []KeysetKeys `json:"keysets"`
}

type KeysetInfo struct {
	Id     string `json:"id"`
	Unit   string `json:"unit"`
	Active bool   `json:"active"`
}

type GetKeysetsResponse struct {
	Keysets []KeysetInfo `json:"keysets"`
}

type PostSwapRequest struct {
	Inputs  cashu.Proofs          `json:"inputs"`
	Outputs cashu.BlindedMessages `json:"outputs"`
}

type PostSwapResponse struct {
	Signatures cashu.BlindedSignatures `json:"signatures"`
}

type PostMintQuoteBolt11Request struct {
	Amount uint64 `json:"amount"`
	Unit   string `json:"unit"`
}

type PostMintQuoteBolt11Response struct {
	Quote   string `json:"quote"`
	Request string `json:"request"`
	State   string `json:"state"`
	Paid    bool   `json:"paid"`
	Expiry  uint64 `json:"expiry"`
}

type PostMintBolt11Request struct {
	Quote   string                `json:"quote"`
	Outputs cashu.BlindedMessages `json:"outputs"`
}

type PostMintBolt11Response struct {
	Signatures cashu.BlindedSignatures `json:"signatures"`
}

type PostMeltQuoteBolt11Request struct {
	Request string `json:"request"`
	Unit    string `json:"unit"`
}

type PostMeltQuoteBolt11Response struct {
	Quote      string `json:"quote"`
	Amount     uint64 `json:"amount"`
	FeeReserve uint64 `json:"fee_reserve"`
	State      string `json:"state"`
	Paid       bool   `json:"paid"`
	Expiry     uint64 `json:"expiry"`
	Preimage   string `json:"payment_preimage,omitempty"`
}

type PostMeltBolt11Request struct {
	Quote  string       `json:"quote"`
	Inputs cashu.Proofs `json:"inputs"`
}

func GetMintInfo(ctx context.Context, mintURL string) (*MintInfo, error) {
	body, err := get(ctx, mintURL+"/v1/info")
	if err != nil {
		return nil, err
	}

	var mintInfo MintInfo
	if err := json.Unmarshal(body, &mintInfo); err != nil {
		return nil, fmt.Errorf("error reading response from mint: %v", err)
	}

	return &mintInfo, nil
}

func GetActiveKeysets(ctx context.Context, mintURL string) (*GetKeysResponse, error) {
	body, err := get(ctx, mintURL+"/v1/keys")
	if err != nil {
		return nil, err
	}

	var keysetRes GetKeysResponse
	if err := json.Unmarshal(body, &keysetRes); err != nil {
		return nil, fmt.Errorf("error reading response from mint: %v", err)
	}

	return &keysetRes, nil
}

func GetAllKeysets(ctx context.Context, mintURL string) (*GetKeysetsResponse, error) {
	body, err := get(ctx, mintURL+"/v1/keysets")
	if err != nil {
		return nil, err
	}

	var keysetsRes GetKeysetsResponse
	if err := json.Unmarshal(body, &keysetsRes); err != nil {
		return nil, fmt.Errorf("error reading response from mint: %v", err)
	}

	return &keysetsRes, nil
}

func PostSwap(ctx context.Context, mintURL string, swapRequest PostSwapRequest) (*PostSwapResponse, error) {
	body, err := post(ctx, mintURL+"/v1/swap", swapRequest)
	if err != nil {
		return nil, err
	}

	var swapResponse PostSwapResponse
	if err := json.Unmarshal(body, &swapResponse); err != nil {
		return nil, fmt.Errorf("error reading response from mint: %v", err)
	}

	return &swapResponse, nil
}

func PostMintQuoteBolt11(ctx context.Context, mintURL string, quoteRequest PostMintQuoteBolt11Request) (
	*PostMintQuoteBolt11Response, error) {
	body, err := post(ctx, mintURL+"/v1/mint/quote/bolt11", quoteRequest)
	if err != nil {
		return nil, err
	}

	var quoteResponse PostMintQuoteBolt11Response
	if err := json.Unmarshal(body, &quoteResponse); err != nil {
		return nil, fmt.Errorf("error reading response from mint: %v", err)
	}

	return &quoteResponse, nil
}

func GetMintQuoteState(ctx context.Context, mintURL, quoteId string) (*PostMintQuoteBolt11Response, error) {
	body, err := get(ctx, mintURL+"/v1/mint/quote/bolt11/"+quoteId)
	if err != nil {
		return nil, err
	}

	var quoteResponse PostMintQuoteBolt11Response
	if err := json.Unmarshal(body, &quoteResponse); err != nil {
		return nil, fmt.Errorf("error reading response from mint: %v", err)
	}

	return &quoteResponse, nil
}

func PostMintBolt11(ctx context.Context, mintURL string, mintRequest PostMintBolt11Request) (
	*PostMintBolt11Response, error) {
	body, err := post(ctx, mintURL+"/v1/mint/bolt11", mintRequest)
	if err != nil {
		return nil, err
	}

	var mintResponse PostMintBolt11Response
	if err := json.Unmarshal(body, &mintResponse); err != nil {
		return nil, fmt.Errorf("error reading response from mint: %v", err)
	}

	return &mintResponse, nil
}

func PostMeltQuoteBolt11(ctx context.Context, mintURL string, quoteRequest PostMeltQuoteBolt11Request) (
	*PostMeltQuoteBolt11Response, error) {
	body, err := post(ctx, mintURL+"/v1/melt/quote/bolt11", quoteRequest)
	if err != nil {
		return nil, err
	}

	var quoteResponse PostMeltQuoteBolt11Response
	if err := json.Unmarshal(body, &quoteResponse); err != nil {
		return nil, fmt.Errorf("error reading response from mint: %v", err)
	}

	return &quoteResponse, nil
}

func PostMeltBolt11(ctx context.Context, mintURL string, meltRequest PostMeltBolt11Request) (
	*PostMeltQuoteBolt11Response, error) {
	body, err := post(ctx, mintURL+"/v1/melt/bolt11", meltRequest)
	if err != nil {
		return nil, err
	}

	var meltResponse PostMeltQuoteBolt11Response
	if err := json.Unmarshal(body, &meltResponse); err != nil {
		return nil, fmt.Errorf("error reading response from mint: %v", err)
	}

	return &meltResponse, nil
}

func get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return parse(resp)
}

func post(ctx context.Context, url string, payload any) ([]byte, error) {
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("json.Marshal: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return parse(resp)
}

func parse(response *http.Response) ([]byte, error) {
	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}

	if response.StatusCode == 400 {
		var errResponse cashu.Error
		if err := json.Unmarshal(body, &errResponse); err != nil {
			return nil, fmt.Errorf("could not decode error response from mint: %v", err)
		}
		return nil, errResponse
	}

	if response.StatusCode != 200 {
		return nil, fmt.Errorf("%s", body)
	}

	return body, nil
}
