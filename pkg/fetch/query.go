package fetch

// Query is the mostRecentJobsFeed GraphQL document. Field aliases (uid,
// createdOn, jobTs, attrs, ...) match what downstream consumers of the
// mailed JSON expect and must not be renamed.
const Query = `query($limit: Int, $toTime: String) {
    mostRecentJobsFeed(limit: $limit, toTime: $toTime) {
      results {
        id,
        uid:id
        title,
        ciphertext,
        description,
        type,
        recno,
        freelancersToHire,
        duration,
        engagement,
        amount {
          amount,
        },
        createdOn:createdDateTime,
        publishedOn:publishedDateTime,
        prefFreelancerLocationMandatory,
        connectPrice,
        client {
          totalHires
          totalSpent
          paymentVerificationStatus,
          location {
            country,
          },
          totalReviews
          totalFeedback,
          hasFinancialPrivacy
        },
        tierText
        tier
        tierLabel
        proposalsTier
        enterpriseJob
        premium,
        jobTs:jobTime,
        attrs:skills {
          id,
          uid:id,
          prettyName:prefLabel
          prefLabel
        }
        hourlyBudget {
          type
          min
          max
        }
        isApplied
      },
      paging {
        total,
        count,
        resultSetTs:minTime,
        maxTime
      }
    }
  }`

type graphQLVariables struct {
	Limit int `json:"limit"`
}

type graphQLRequest struct {
	Query     string           `json:"query"`
	Variables graphQLVariables `json:"variables"`
}
