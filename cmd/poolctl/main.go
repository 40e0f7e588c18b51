package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"sharepool/cmd/internal/passphrase"
	"sharepool/core/tx"
	"sharepool/crypto"
	"sharepool/native/pool"
)

const (
	keyPassEnv     = "SHAREPOOL_KEY_PASS"
	defaultRPC     = "http://127.0.0.1:8080"
	defaultChainID = 187
)

var httpClient = &http.Client{Timeout: 15 * time.Second}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(1)
	}
	if err := dispatch(os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `Usage: poolctl <command> [flags]

Commands:
  keygen   -keystore PATH                     generate a signing key
  address  -keystore PATH                     print the address of a key
  derive   -reference ADDR                    print the pool, mint and distribution addresses
  sign     -keystore PATH -type T -params JSON [-nonce N | -rpc URL] [-chain ID]
  cosign   -keystore PATH -file FILE          append a signature to a signed instruction
  send     -file FILE [-rpc URL]              submit a signed instruction
  submit   -keystore PATH -type T -params JSON [-cosign PATH,...] [-rpc URL] [-chain ID]
  get      [-rpc URL] PATH                    GET a query route, e.g. /v1/pools/<addr>`)
}

func dispatch(cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "keygen":
		return runKeygen(args, out)
	case "address":
		return runAddress(args, out)
	case "derive":
		return runDerive(args, out)
	case "sign":
		return runSign(args, out)
	case "cosign":
		return runCosign(args, out)
	case "send":
		return runSend(args, out)
	case "submit":
		return runSubmit(args, out)
	case "get":
		return runGet(args, out)
	case "help", "-h", "--help":
		usage(out)
		return nil
	}
	usage(os.Stderr)
	return fmt.Errorf("unknown command %q", cmd)
}

func loadKey(path string, src *passphrase.Source) (*crypto.PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("-keystore is required")
	}
	pass, err := src.Get()
	if err != nil {
		return nil, err
	}
	return crypto.LoadFromKeystore(path, pass)
}

func runKeygen(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	keystorePath := fs.String("keystore", "", "Output path for the keystore file")
	force := fs.Bool("force", false, "Overwrite an existing keystore file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *keystorePath == "" {
		return fmt.Errorf("-keystore is required")
	}
	if _, err := os.Stat(*keystorePath); err == nil && !*force {
		return fmt.Errorf("keystore %s already exists (use -force to overwrite)", *keystorePath)
	}
	pass, err := passphrase.NewSource(keyPassEnv, "signer keystore").Get()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystore(*keystorePath, key, pass); err != nil {
		return err
	}
	fmt.Fprintln(out, key.PubKey().Address().String())
	return nil
}

func runAddress(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	keystorePath := fs.String("keystore", "", "Path to the keystore file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := loadKey(*keystorePath, passphrase.NewSource(keyPassEnv, "signer keystore"))
	if err != nil {
		return err
	}
	fmt.Fprintln(out, key.PubKey().Address().String())
	return nil
}

func runDerive(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("derive", flag.ContinueOnError)
	referenceFlag := fs.String("reference", "", "Reference address of the pool")
	if err := fs.Parse(args); err != nil {
		return err
	}
	reference, err := crypto.DecodeAddress(strings.TrimSpace(*referenceFlag))
	if err != nil {
		return fmt.Errorf("reference: %w", err)
	}
	addr := pool.PoolAddress(reference)
	return printJSON(out, map[string]crypto.Address{
		"reference":    reference,
		"pool":         addr,
		"mint":         pool.MintAddress(addr),
		"distribution": pool.DistributionAddress(addr),
	})
}

type signFlags struct {
	keystore string
	typ      string
	params   string
	nonce    int64
	chainID  uint64
	rpcURL   string
}

func (f *signFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.keystore, "keystore", "", "Keystore of the fee payer")
	fs.StringVar(&f.typ, "type", "", "Instruction type, e.g. createPool")
	fs.StringVar(&f.params, "params", "", "Instruction params as JSON, or @file")
	fs.Int64Var(&f.nonce, "nonce", -1, "Payer nonce; fetched from -rpc when negative")
	fs.Uint64Var(&f.chainID, "chain", defaultChainID, "Chain id")
	fs.StringVar(&f.rpcURL, "rpc", defaultRPC, "RPC endpoint")
}

func readParams(raw string) (json.RawMessage, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "@") {
		data, err := os.ReadFile(raw[1:])
		if err != nil {
			return nil, err
		}
		raw = strings.TrimSpace(string(data))
	}
	if raw == "" {
		return nil, fmt.Errorf("-params is required")
	}
	if !json.Valid([]byte(raw)) {
		return nil, fmt.Errorf("-params is not valid JSON")
	}
	return json.RawMessage(raw), nil
}

// buildSigned creates an instruction paid and signed by payer.
func buildSigned(f signFlags, payer *crypto.PrivateKey) (*tx.Instruction, error) {
	if strings.TrimSpace(f.typ) == "" {
		return nil, fmt.Errorf("-type is required")
	}
	params, err := readParams(f.params)
	if err != nil {
		return nil, err
	}
	payerAddr := payer.PubKey().Address()
	nonce := uint64(f.nonce)
	if f.nonce < 0 {
		if nonce, err = fetchNonce(f.rpcURL, payerAddr); err != nil {
			return nil, fmt.Errorf("fetch nonce: %w", err)
		}
	}
	ins, err := tx.New(tx.Type(f.typ), f.chainID, nonce, payerAddr, params)
	if err != nil {
		return nil, err
	}
	if err := ins.Sign(payer); err != nil {
		return nil, err
	}
	return ins, nil
}

func runSign(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	var f signFlags
	f.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := loadKey(f.keystore, passphrase.NewSource(keyPassEnv, "signer keystore"))
	if err != nil {
		return err
	}
	ins, err := buildSigned(f, key)
	if err != nil {
		return err
	}
	return printJSON(out, ins)
}

func readInstruction(path string) (*tx.Instruction, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("-file is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ins tx.Instruction
	if err := json.Unmarshal(data, &ins); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &ins, nil
}

func runCosign(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("cosign", flag.ContinueOnError)
	keystorePath := fs.String("keystore", "", "Keystore of the co-signer")
	file := fs.String("file", "", "Signed instruction JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ins, err := readInstruction(*file)
	if err != nil {
		return err
	}
	key, err := loadKey(*keystorePath, passphrase.NewSource(keyPassEnv, "signer keystore"))
	if err != nil {
		return err
	}
	if err := ins.Sign(key); err != nil {
		return err
	}
	return printJSON(out, ins)
}

func runSend(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	file := fs.String("file", "", "Signed instruction JSON")
	rpcURL := fs.String("rpc", defaultRPC, "RPC endpoint")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ins, err := readInstruction(*file)
	if err != nil {
		return err
	}
	return send(*rpcURL, ins, out)
}

func runSubmit(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	var f signFlags
	f.register(fs)
	cosign := fs.String("cosign", "", "Comma-separated keystores of additional signers")
	if err := fs.Parse(args); err != nil {
		return err
	}
	src := passphrase.NewSource(keyPassEnv, "signer keystore")
	key, err := loadKey(f.keystore, src)
	if err != nil {
		return err
	}
	ins, err := buildSigned(f, key)
	if err != nil {
		return err
	}
	for _, path := range strings.Split(*cosign, ",") {
		if path = strings.TrimSpace(path); path == "" {
			continue
		}
		cosigner, err := loadKey(path, src)
		if err != nil {
			return fmt.Errorf("cosigner %s: %w", path, err)
		}
		if err := ins.Sign(cosigner); err != nil {
			return err
		}
	}
	return send(f.rpcURL, ins, out)
}

func runGet(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	rpcURL := fs.String("rpc", defaultRPC, "RPC endpoint")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("get expects exactly one path")
	}
	body, err := doRequest(http.MethodGet, endpoint(*rpcURL, fs.Arg(0)), nil)
	if err != nil {
		return err
	}
	_, err = out.Write(append(bytes.TrimSpace(body), '\n'))
	return err
}

func endpoint(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func fetchNonce(rpcURL string, addr crypto.Address) (uint64, error) {
	body, err := doRequest(http.MethodGet, endpoint(rpcURL, "/v1/accounts/"+addr.String()+"/nonce"), nil)
	if err != nil {
		return 0, err
	}
	var resp struct {
		Nonce uint64 `json:"nonce"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, err
	}
	return resp.Nonce, nil
}

func send(rpcURL string, ins *tx.Instruction, out io.Writer) error {
	payload, err := json.Marshal(ins)
	if err != nil {
		return err
	}
	body, err := doRequest(http.MethodPost, endpoint(rpcURL, "/v1/instructions"), payload)
	if err != nil {
		return err
	}
	_, err = out.Write(append(bytes.TrimSpace(body), '\n'))
	return err
}

type apiError struct {
	Status  int
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("rpc returned %d", e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func doRequest(method, url string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &apiError{Status: resp.StatusCode}
		_ = json.Unmarshal(body, apiErr)
		return nil, apiErr
	}
	return body, nil
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
