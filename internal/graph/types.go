package graph

import (
	"github.com/graphql-go/graphql"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/domain"
)

// objects holds the output types. Contract and Rate refer to each other,
// so their fields are thunks.
type objects struct {
	user               *graphql.Object
	updatedBy          *graphql.Object
	updateInfo         *graphql.Object
	document           *graphql.Object
	stateContact       *graphql.Object
	actuaryContact     *graphql.Object
	contractFormData   *graphql.Object
	rateFormData       *graphql.Object
	contractRevision   *graphql.Object
	rateRevision       *graphql.Object
	contractAction     *graphql.Object
	rateAction         *graphql.Object
	packageSubmission  *graphql.Object
	contract           *graphql.Object
	rate               *graphql.Object
	rateStripped       *graphql.Object
	apiKey             *graphql.Object
	contractPayload    *graphql.Object
	ratePayload        *graphql.Object
	indexContracts     *graphql.Object
	indexRatesStripped *graphql.Object
}

func nonNull(t graphql.Output) *graphql.NonNull { return graphql.NewNonNull(t) }

func listOf(t graphql.Output) *graphql.NonNull {
	return graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(t)))
}

func newObjects(r *Resolver) *objects {
	o := &objects{}

	o.user = graphql.NewObject(graphql.ObjectConfig{
		Name: "User",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: nonNull(graphql.ID)},
			"email":      &graphql.Field{Type: nonNull(graphql.String)},
			"givenName":  &graphql.Field{Type: graphql.String},
			"familyName": &graphql.Field{Type: graphql.String},
			"role":       &graphql.Field{Type: nonNull(roleEnum)},
			"stateCode":  &graphql.Field{Type: graphql.String},
		},
	})

	o.updatedBy = graphql.NewObject(graphql.ObjectConfig{
		Name: "UpdatedBy",
		Fields: graphql.Fields{
			"email":      &graphql.Field{Type: nonNull(graphql.String)},
			"role":       &graphql.Field{Type: roleEnum},
			"givenName":  &graphql.Field{Type: graphql.String},
			"familyName": &graphql.Field{Type: graphql.String},
		},
	})

	o.updateInfo = graphql.NewObject(graphql.ObjectConfig{
		Name: "UpdateInformation",
		Fields: graphql.Fields{
			"updatedAt":     &graphql.Field{Type: nonNull(DateTime)},
			"updatedBy":     &graphql.Field{Type: nonNull(o.updatedBy)},
			"updatedReason": &graphql.Field{Type: graphql.String},
		},
	})

	o.document = graphql.NewObject(graphql.ObjectConfig{
		Name: "GenericDocument",
		Fields: graphql.Fields{
			"name":   &graphql.Field{Type: nonNull(graphql.String)},
			"s3URL":  &graphql.Field{Type: nonNull(graphql.String)},
			"sha256": &graphql.Field{Type: nonNull(graphql.String)},
			"downloadURL": &graphql.Field{
				Type:    graphql.String,
				Resolve: r.nested("downloadURL", r.documentDownloadURL),
			},
		},
	})

	o.stateContact = graphql.NewObject(graphql.ObjectConfig{
		Name: "StateContact",
		Fields: graphql.Fields{
			"name":      &graphql.Field{Type: graphql.String},
			"titleRole": &graphql.Field{Type: graphql.String},
			"email":     &graphql.Field{Type: graphql.String},
		},
	})

	o.actuaryContact = graphql.NewObject(graphql.ObjectConfig{
		Name: "ActuaryContact",
		Fields: graphql.Fields{
			"name":          &graphql.Field{Type: graphql.String},
			"titleRole":     &graphql.Field{Type: graphql.String},
			"email":         &graphql.Field{Type: graphql.String},
			"actuarialFirm": &graphql.Field{Type: graphql.String},
		},
	})

	o.contractFormData = graphql.NewObject(graphql.ObjectConfig{
		Name: "ContractFormData",
		Fields: graphql.Fields{
			"submissionType":        &graphql.Field{Type: submissionTypeEnum},
			"submissionDescription": &graphql.Field{Type: graphql.String},
			"contractType":          &graphql.Field{Type: contractTypeEnum},
			"programIDs":            &graphql.Field{Type: listOf(graphql.String)},
			"populationCovered":     &graphql.Field{Type: populationCoveredEnum},
			"riskBasedContract": &graphql.Field{
				Type: graphql.Boolean,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					fd, _ := p.Source.(domain.ContractFormData)
					if fd.RiskBasedContract == nil {
						return nil, nil
					}
					return *fd.RiskBasedContract, nil
				},
			},
			"contractDateStart":   &graphql.Field{Type: graphql.String},
			"contractDateEnd":     &graphql.Field{Type: graphql.String},
			"contractDocuments":   &graphql.Field{Type: listOf(o.document)},
			"supportingDocuments": &graphql.Field{Type: listOf(o.document)},
			"stateContacts":       &graphql.Field{Type: listOf(o.stateContact)},
		},
	})

	o.rateFormData = graphql.NewObject(graphql.ObjectConfig{
		Name: "RateFormData",
		Fields: graphql.Fields{
			"rateType":                  &graphql.Field{Type: rateTypeEnum},
			"rateCertificationName":     &graphql.Field{Type: graphql.String},
			"rateProgramIDs":            &graphql.Field{Type: listOf(graphql.String)},
			"rateDateStart":             &graphql.Field{Type: graphql.String},
			"rateDateEnd":               &graphql.Field{Type: graphql.String},
			"rateDateCertified":         &graphql.Field{Type: graphql.String},
			"rateDocuments":             &graphql.Field{Type: listOf(o.document)},
			"supportingDocuments":       &graphql.Field{Type: listOf(o.document)},
			"certifyingActuaryContacts": &graphql.Field{Type: listOf(o.actuaryContact)},
		},
	})

	revisionFields := func(owner string, formData *graphql.Object) graphql.Fields {
		return graphql.Fields{
			"id":         &graphql.Field{Type: nonNull(graphql.ID)},
			owner:        &graphql.Field{Type: nonNull(graphql.ID)},
			"createdAt":  &graphql.Field{Type: nonNull(DateTime)},
			"updatedAt":  &graphql.Field{Type: nonNull(DateTime)},
			"submitInfo": &graphql.Field{Type: o.updateInfo},
			"unlockInfo": &graphql.Field{Type: o.updateInfo},
			"formData":   &graphql.Field{Type: nonNull(formData)},
		}
	}
	o.contractRevision = graphql.NewObject(graphql.ObjectConfig{
		Name:   "ContractRevision",
		Fields: revisionFields("contractID", o.contractFormData),
	})
	o.rateRevision = graphql.NewObject(graphql.ObjectConfig{
		Name:   "RateRevision",
		Fields: revisionFields("rateID", o.rateFormData),
	})

	o.contractAction = graphql.NewObject(graphql.ObjectConfig{
		Name: "ContractReviewStatusAction",
		Fields: graphql.Fields{
			"id":                          &graphql.Field{Type: nonNull(graphql.ID)},
			"contractID":                  &graphql.Field{Type: nonNull(graphql.ID)},
			"actionType":                  &graphql.Field{Type: nonNull(actionTypeEnum)},
			"updatedAt":                   &graphql.Field{Type: nonNull(DateTime)},
			"updatedBy":                   &graphql.Field{Type: nonNull(o.updatedBy)},
			"updatedReason":               &graphql.Field{Type: graphql.String},
			"dateApprovalReleasedToState": &graphql.Field{Type: Date},
		},
	})

	o.rateAction = graphql.NewObject(graphql.ObjectConfig{
		Name: "RateReviewStatusAction",
		Fields: graphql.Fields{
			"id":            &graphql.Field{Type: nonNull(graphql.ID)},
			"rateID":        &graphql.Field{Type: nonNull(graphql.ID)},
			"actionType":    &graphql.Field{Type: nonNull(actionTypeEnum)},
			"contractID":    &graphql.Field{Type: graphql.ID},
			"updatedAt":     &graphql.Field{Type: nonNull(DateTime)},
			"updatedBy":     &graphql.Field{Type: nonNull(o.updatedBy)},
			"updatedReason": &graphql.Field{Type: graphql.String},
		},
	})

	o.packageSubmission = graphql.NewObject(graphql.ObjectConfig{
		Name: "ContractPackageSubmission",
		Fields: graphql.Fields{
			"id": &graphql.Field{
				Type:    nonNull(graphql.ID),
				Resolve: packageField(func(v packageView) interface{} { return v.pkg.ID }),
			},
			"cause": &graphql.Field{
				Type:    nonNull(submissionCauseEnum),
				Resolve: packageField(func(v packageView) interface{} { return v.pkg.Cause }),
			},
			"submitInfo": &graphql.Field{
				Type:    nonNull(o.updateInfo),
				Resolve: packageField(func(v packageView) interface{} { return v.pkg.SubmitInfo }),
			},
			"createdAt": &graphql.Field{
				Type:    nonNull(DateTime),
				Resolve: packageField(func(v packageView) interface{} { return v.pkg.CreatedAt }),
			},
			"contractRevision": &graphql.Field{
				Type: nonNull(o.contractRevision),
				Resolve: packageField(func(v packageView) interface{} {
					return v.contract.RevisionByID(v.pkg.ContractRevisionID)
				}),
			},
			"rateRevisions": &graphql.Field{
				Type:    listOf(o.rateRevision),
				Resolve: r.nested("rateRevisions", r.packageRateRevisions),
			},
		},
	})

	o.contract = graphql.NewObject(graphql.ObjectConfig{
		Name: "Contract",
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return graphql.Fields{
				"id":          &graphql.Field{Type: nonNull(graphql.ID)},
				"stateCode":   &graphql.Field{Type: nonNull(graphql.String)},
				"stateNumber": &graphql.Field{Type: nonNull(graphql.Int)},
				"createdAt":   &graphql.Field{Type: nonNull(DateTime)},
				"updatedAt":   &graphql.Field{Type: nonNull(DateTime)},
				"name": &graphql.Field{
					Type:    nonNull(graphql.String),
					Resolve: contractField(func(c *domain.Contract) interface{} { return c.Name() }),
				},
				"status": &graphql.Field{
					Type:    nonNull(statusEnum),
					Resolve: contractField(func(c *domain.Contract) interface{} { return c.Status() }),
				},
				"reviewStatus": &graphql.Field{
					Type:    nonNull(reviewStatusEnum),
					Resolve: contractField(func(c *domain.Contract) interface{} { return c.ReviewStatus() }),
				},
				"consolidatedStatus": &graphql.Field{
					Type:    nonNull(statusEnum),
					Resolve: contractField(func(c *domain.Contract) interface{} { return c.ConsolidatedStatus() }),
				},
				"initiallySubmittedAt": &graphql.Field{
					Type:    DateTime,
					Resolve: contractField(func(c *domain.Contract) interface{} { return c.InitiallySubmittedAt() }),
				},
				"lastSeenUpdatedAt": &graphql.Field{
					Type:        nonNull(DateTime),
					Description: "Echo this value back on draft edits.",
					Resolve:     contractField(func(c *domain.Contract) interface{} { return c.LastSeenUpdatedAt() }),
				},
				"draftRevision": &graphql.Field{
					Type:    o.contractRevision,
					Resolve: contractField(func(c *domain.Contract) interface{} { return c.DraftRevision() }),
				},
				"draftRates": &graphql.Field{
					Type: listOf(o.rate),
					Resolve: r.nested("draftRates", func(p graphql.ResolveParams) (interface{}, error) {
						return r.svc.DraftRates(p.Context, p.Source.(*domain.Contract))
					}),
				},
				"withdrawnRates": &graphql.Field{
					Type: listOf(o.rate),
					Resolve: r.nested("withdrawnRates", func(p graphql.ResolveParams) (interface{}, error) {
						return r.svc.WithdrawnRates(p.Context, p.Source.(*domain.Contract))
					}),
				},
				"packageSubmissions": &graphql.Field{
					Type:        listOf(o.packageSubmission),
					Description: "Newest first.",
					Resolve:     contractField(packageViews),
				},
				"reviewStatusActions": &graphql.Field{
					Type:        listOf(o.contractAction),
					Description: "Newest first.",
					Resolve: contractField(func(c *domain.Contract) interface{} {
						return newestFirst(c.ReviewActions)
					}),
				},
			}
		}),
	})

	rateBaseFields := func() graphql.Fields {
		return graphql.Fields{
			"id":               &graphql.Field{Type: nonNull(graphql.ID)},
			"stateCode":        &graphql.Field{Type: nonNull(graphql.String)},
			"stateNumber":      &graphql.Field{Type: nonNull(graphql.Int)},
			"parentContractID": &graphql.Field{Type: nonNull(graphql.ID)},
			"createdAt":        &graphql.Field{Type: nonNull(DateTime)},
			"updatedAt":        &graphql.Field{Type: nonNull(DateTime)},
			"name": &graphql.Field{
				Type:    nonNull(graphql.String),
				Resolve: rateField(func(rt *domain.Rate) interface{} { return rt.Name() }),
			},
			"status": &graphql.Field{
				Type:    nonNull(statusEnum),
				Resolve: rateField(func(rt *domain.Rate) interface{} { return rt.Status() }),
			},
			"reviewStatus": &graphql.Field{
				Type:    nonNull(reviewStatusEnum),
				Resolve: rateField(func(rt *domain.Rate) interface{} { return rt.ReviewStatus() }),
			},
			"consolidatedStatus": &graphql.Field{
				Type:    nonNull(statusEnum),
				Resolve: rateField(func(rt *domain.Rate) interface{} { return rt.ConsolidatedStatus() }),
			},
			"initiallySubmittedAt": &graphql.Field{
				Type:    DateTime,
				Resolve: rateField(func(rt *domain.Rate) interface{} { return rt.InitiallySubmittedAt() }),
			},
			"draftRevision": &graphql.Field{
				Type:    o.rateRevision,
				Resolve: rateField(func(rt *domain.Rate) interface{} { return rt.DraftRevision() }),
			},
			"latestSubmittedRevision": &graphql.Field{
				Type:    o.rateRevision,
				Resolve: rateField(func(rt *domain.Rate) interface{} { return rt.LatestSubmittedRevision() }),
			},
		}
	}

	o.rateStripped = graphql.NewObject(graphql.ObjectConfig{
		Name:   "RateStripped",
		Fields: rateBaseFields(),
	})

	o.rate = graphql.NewObject(graphql.ObjectConfig{
		Name: "Rate",
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			fields := rateBaseFields()
			fields["revisions"] = &graphql.Field{
				Type:        listOf(o.rateRevision),
				Description: "Newest first.",
				Resolve:     rateField(func(rt *domain.Rate) interface{} { return newestFirst(rt.Revisions) }),
			}
			fields["reviewStatusActions"] = &graphql.Field{
				Type:        listOf(o.rateAction),
				Description: "Newest first.",
				Resolve:     rateField(func(rt *domain.Rate) interface{} { return newestFirst(rt.ReviewActions) }),
			}
			fields["parentContract"] = &graphql.Field{
				Type: o.contract,
				Resolve: r.nested("parentContract", func(p graphql.ResolveParams) (interface{}, error) {
					return r.svc.ParentContract(p.Context, p.Source.(*domain.Rate))
				}),
			}
			fields["contracts"] = &graphql.Field{
				Type:        listOf(o.contract),
				Description: "Every contract associated with this rate.",
				Resolve: r.nested("contracts", func(p graphql.ResolveParams) (interface{}, error) {
					return r.svc.ContractsForRate(p.Context, p.Source.(*domain.Rate))
				}),
			}
			fields["withdrawnFromContracts"] = &graphql.Field{
				Type: listOf(o.contract),
				Resolve: r.nested("withdrawnFromContracts", func(p graphql.ResolveParams) (interface{}, error) {
					return r.svc.WithdrawnFromContracts(p.Context, p.Source.(*domain.Rate))
				}),
			}
			return fields
		}),
	})

	o.apiKey = graphql.NewObject(graphql.ObjectConfig{
		Name: "CreateAPIKeyPayload",
		Fields: graphql.Fields{
			"key":       &graphql.Field{Type: nonNull(graphql.String)},
			"expiresAt": &graphql.Field{Type: nonNull(DateTime)},
		},
	})

	o.contractPayload = graphql.NewObject(graphql.ObjectConfig{
		Name:   "ContractPayload",
		Fields: graphql.Fields{"contract": &graphql.Field{Type: nonNull(o.contract)}},
	})
	o.ratePayload = graphql.NewObject(graphql.ObjectConfig{
		Name:   "RatePayload",
		Fields: graphql.Fields{"rate": &graphql.Field{Type: nonNull(o.rate)}},
	})

	o.indexContracts = connection("IndexContracts", o.contract)
	o.indexRatesStripped = connection("IndexRatesStripped", o.rateStripped)
	return o
}

func connection(name string, node *graphql.Object) *graphql.Object {
	edge := graphql.NewObject(graphql.ObjectConfig{
		Name:   name + "Edge",
		Fields: graphql.Fields{"node": &graphql.Field{Type: nonNull(node)}},
	})
	return graphql.NewObject(graphql.ObjectConfig{
		Name: name + "Payload",
		Fields: graphql.Fields{
			"totalCount": &graphql.Field{Type: nonNull(graphql.Int)},
			"edges":      &graphql.Field{Type: listOf(edge)},
		},
	})
}

func contractField(fn func(c *domain.Contract) interface{}) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		c, ok := p.Source.(*domain.Contract)
		if !ok || c == nil {
			return nil, nil
		}
		return fn(c), nil
	}
}

func rateField(fn func(rt *domain.Rate) interface{}) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		rt, ok := p.Source.(*domain.Rate)
		if !ok || rt == nil {
			return nil, nil
		}
		return fn(rt), nil
	}
}

// packageView pairs a package with its contract so revisions can be resolved.
type packageView struct {
	contract *domain.Contract
	pkg      domain.PackageSubmission
}

func packageViews(c *domain.Contract) interface{} {
	out := make([]packageView, 0, len(c.PackageSubmissions))
	for i := len(c.PackageSubmissions) - 1; i >= 0; i-- {
		out = append(out, packageView{contract: c, pkg: c.PackageSubmissions[i]})
	}
	return out
}

func packageField(fn func(v packageView) interface{}) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		v, ok := p.Source.(packageView)
		if !ok {
			return nil, nil
		}
		return fn(v), nil
	}
}

func newestFirst[T any](in []T) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}
