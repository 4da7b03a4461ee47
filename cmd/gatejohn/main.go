package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	BaseURL   string
	APIKey    string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("X-Admin-API-Key", c.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func main() {
	var (
		baseURL = envOr("GATEJOHN_ADMIN_URL", "http://localhost:8080")
		apiKey  = envOr("GATEJOHN_ADMIN_KEY", "")
		out     = envOr("GATEJOHN_OUT", "text")
	)

	root := &cobra.Command{
		Use:   "gatejohn",
		Short: "CLI admin para GateJohn (solo /admin)",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if apiKey == "" {
				return fmt.Errorf("falta API key (flag --admin-api-key o env GATEJOHN_ADMIN_KEY)")
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&baseURL, "admin-api-url", baseURL, "URL base del Admin API (env GATEJOHN_ADMIN_URL)")
	root.PersistentFlags().StringVar(&apiKey, "admin-api-key", apiKey, "API key del Admin API (env GATEJOHN_ADMIN_KEY)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	cl := &client{BaseURL: baseURL, APIKey: apiKey, OutFormat: out, HTTP: &http.Client{Timeout: 30 * time.Second}}

	clientsCmd := &cobra.Command{
		Use:   "clients",
		Short: "Gestión de OAuth2 clients",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Listar clients registrados",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/admin/clients", nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("list falló: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}

	var (
		crName        string
		crDesc        string
		crRedirects   []string
		crScopes      []string
		crDefaults    []string
		crGrants      []string
		crAutoApprove bool
		crPublic      bool
	)
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Crear un client (el secret se imprime una sola vez)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if crName == "" {
				return fmt.Errorf("--name es requerido")
			}
			if len(crRedirects) == 0 {
				return fmt.Errorf("--redirect-uri es requerido (al menos una)")
			}
			payload := map[string]any{
				"name":           crName,
				"description":    crDesc,
				"redirect_uris":  crRedirects,
				"allowed_scopes": crScopes,
				"default_scopes": crDefaults,
				"grant_types":    crGrants,
				"auto_approve":   crAutoApprove,
			}
			if crPublic {
				payload["is_confidential"] = false
			}
			b, _ := json.Marshal(payload)
			status, body, err := cl.do("POST", "/admin/clients", b)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("create falló: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	createCmd.Flags().StringVar(&crName, "name", "", "Nombre único del client")
	createCmd.Flags().StringVar(&crDesc, "description", "", "Descripción")
	createCmd.Flags().StringArrayVar(&crRedirects, "redirect-uri", nil, "Redirect URI (repetible)")
	createCmd.Flags().StringSliceVar(&crScopes, "scope", []string{"openid", "user"}, "Scopes permitidos")
	createCmd.Flags().StringSliceVar(&crDefaults, "default-scope", nil, "Scopes por defecto")
	createCmd.Flags().StringSliceVar(&crGrants, "grant-type", nil, "Grant types habilitados")
	createCmd.Flags().BoolVar(&crAutoApprove, "auto-approve", false, "Saltear pantalla de consent")
	createCmd.Flags().BoolVar(&crPublic, "public", false, "Client público (sin secret)")

	deleteCmd := &cobra.Command{
		Use:   "delete <client_id>",
		Short: "Borrar un client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("DELETE", "/admin/clients/"+args[0], nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("delete falló: status=%d body=%s", status, string(body))
			}
			if cl.OutFormat == "text" {
				fmt.Println("ok")
				return nil
			}
			cl.print(status, body)
			return nil
		},
	}

	clientsCmd.AddCommand(listCmd, createCmd, deleteCmd)
	root.AddCommand(clientsCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
